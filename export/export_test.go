package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"quire/config"
	"quire/content"
	"quire/diag"
	"quire/geom"
	"quire/layout"
	"quire/source"
	"quire/state"
)

func setupTestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller()))
}

func setupTestContext(t *testing.T) (context.Context, *state.LocalEnv, *zap.Logger) {
	logger := setupTestLogger(t)
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	ctx := state.ContextWithEnv(context.Background())
	env := state.EnvFromContext(ctx)
	env.Log = logger
	env.Cfg = cfg
	return ctx, env, logger
}

func makeTestDocument(t *testing.T) *Document {
	t.Helper()

	first := layout.DefaultSetup()
	second := layout.DefaultSetup()
	second.Flipped = true
	second.Columns = 2

	return &Document{
		ID:         uuid.MustParse("0190f1c2-5a3e-7cc0-8eec-000000000001"),
		Title:      "Chapter One",
		SourceName: "book.qm",
		Pages: []*layout.Page{
			{
				Number: 1,
				Setup:  first,
				Blocks: []*content.Node{
					content.NewHeading("Chapter One", 1, source.NewSpan(0, 13)),
					content.NewText("The quick brown fox jumps over the lazy dog.", source.NewSpan(14, 59)),
					content.NewContainer("quote", source.NewSpan(60, 90),
						content.NewText("Inner words.", source.NewSpan(66, 78))),
				},
			},
			{
				Number: 2,
				Setup:  second,
				Blocks: []*content.Node{
					content.NewText("Second page text.", source.NewSpan(91, 108)),
					content.NewImage("figures/fox.png", source.NewSpan(109, 131)),
					content.NewSpace(geom.Pt(12), source.NewSpan(132, 140)),
				},
			},
		},
		Diags: []diag.Diagnostic{
			diag.Warning(source.NewSpan(5, 9), `unknown paper "a9"`),
		},
	}
}

func TestGenerate_OverwriteProtection(t *testing.T) {
	ctx, env, log := setupTestContext(t)
	env.Overwrite = false
	tmpDir := t.TempDir()

	doc := makeTestDocument(t)
	outputPath := filepath.Join(tmpDir, "existing.txt")

	if err := os.WriteFile(outputPath, []byte("existing"), 0644); err != nil {
		t.Fatalf("create existing file: %v", err)
	}

	err := Generate(ctx, FormatText, doc, outputPath, log)
	if err == nil {
		t.Fatal("Generate() should refuse to replace an existing file")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Generate() error = %v, want overwrite refusal", err)
	}

	env.Overwrite = true
	if err := Generate(ctx, FormatText, doc, outputPath, log); err != nil {
		t.Fatalf("Generate() with overwrite error = %v", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) == "existing" {
		t.Error("Output file was not replaced")
	}
}

func TestGenerate_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	log := setupTestLogger(t)
	tmpDir := t.TempDir()

	doc := makeTestDocument(t)
	outputPath := filepath.Join(tmpDir, "book.txt")

	err := Generate(ctx, FormatText, doc, outputPath, log)
	if err == nil {
		t.Error("Generate() should fail with cancelled context")
	}
}

func TestGenerate_CreatesOutputDirectory(t *testing.T) {
	ctx, env, log := setupTestContext(t)
	env.Overwrite = true
	tmpDir := t.TempDir()

	doc := makeTestDocument(t)
	outputPath := filepath.Join(tmpDir, "deeply", "nested", "book.txt")

	if err := Generate(ctx, FormatText, doc, outputPath, log); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		t.Errorf("Output file was not created: %v", err)
	}
}

func TestGenerate_Text(t *testing.T) {
	ctx, env, log := setupTestContext(t)
	env.Overwrite = true
	tmpDir := t.TempDir()

	doc := makeTestDocument(t)
	outputPath := filepath.Join(tmpDir, "book.txt")

	if err := Generate(ctx, FormatText, doc, outputPath, log); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	text := string(data)

	expected := []string{
		" page 1: a4 210mm x 297mm ",
		" page 2: a4 297mm x 210mm flipped 2 columns ",
		"Chapter One\n===========",
		"The quick brown fox jumps over the lazy dog.",
		"[quote]\n  Inner words.",
		"[image figures/fox.png]",
	}
	for _, want := range expected {
		if !strings.Contains(text, want) {
			t.Errorf("Output should contain %q", want)
		}
	}
}

func TestWriteTextBlock_HeadingLevels(t *testing.T) {
	var buf bytes.Buffer

	writeTextBlock(&buf, content.NewHeading("Top", 1, source.NewSpan(0, 3)), "")
	writeTextBlock(&buf, content.NewHeading("Sub", 2, source.NewSpan(4, 7)), "")

	text := buf.String()
	if !strings.Contains(text, "Top\n===") {
		t.Errorf("Level 1 heading should be underlined with '=', got %q", text)
	}
	if !strings.Contains(text, "Sub\n---") {
		t.Errorf("Level 2 heading should be underlined with '-', got %q", text)
	}
}

func TestWriteTextBlock_Other(t *testing.T) {
	var buf bytes.Buffer

	writeTextBlock(&buf, content.NewOther("code", "line one\nline two\n", source.NewSpan(0, 18)), "")

	text := buf.String()
	if !strings.Contains(text, "[code]\nline one\nline two\n") {
		t.Errorf("Raw block rendered wrong: %q", text)
	}
}

func TestDescribeSetup(t *testing.T) {
	custom := layout.Setup{
		Size:    geom.Size{Width: geom.Mm(100), Height: geom.Mm(200)},
		Columns: 1,
	}
	flipped := layout.DefaultSetup()
	flipped.Flipped = true
	wide := layout.DefaultSetup()
	wide.Columns = 3

	tests := []struct {
		name     string
		setup    layout.Setup
		expected string
	}{
		{"default", layout.DefaultSetup(), "a4 210mm x 297mm"},
		{"flipped", flipped, "a4 297mm x 210mm flipped"},
		{"columns", wide, "a4 210mm x 297mm 3 columns"},
		{"custom size", custom, "100mm x 200mm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := describeSetup(tt.setup)
			if result != tt.expected {
				t.Errorf("describeSetup() = %q, want %q", result, tt.expected)
			}
		})
	}
}
