package export

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"quire/config"
	"quire/state"
)

func setupTestEnvForNaming(t *testing.T, noDirs, transliterate bool, template string) *state.LocalEnv {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Output.Transliterate = transliterate
	cfg.Output.NameTemplate = template

	env := &state.LocalEnv{
		Log:    logger,
		Cfg:    cfg,
		NoDirs: noDirs,
	}
	return env
}

func setupTestDocForNaming(t *testing.T) *Document {
	t.Helper()
	return &Document{
		ID:         uuid.MustParse("0190f1c2-5a3e-7cc0-8eec-000000000001"),
		Title:      "Test Book",
		SourceName: "testbook.qm",
	}
}

func TestBuildOutputPath_SimpleCase_NoDirs(t *testing.T) {
	doc := setupTestDocForNaming(t)
	env := setupTestEnvForNaming(t, true, false, "")

	result := BuildOutputPath(doc, "books/author/book.qm", "/output", FormatText, env)
	expected := filepath.Join("/output", "book.txt")

	if result != expected {
		t.Errorf("BuildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_SimpleCase_WithDirs(t *testing.T) {
	doc := setupTestDocForNaming(t)
	env := setupTestEnvForNaming(t, false, false, "")

	result := BuildOutputPath(doc, "books/author/book.qm", "/output", FormatText, env)
	expected := filepath.Join("/output", "books", "author", "book.txt")

	if result != expected {
		t.Errorf("BuildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_DifferentFormats(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		ext    string
	}{
		{"text", FormatText, ".txt"},
		{"xml", FormatXML, ".xml"},
		{"bundle", FormatBundle, ".quire"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := setupTestDocForNaming(t)
			env := setupTestEnvForNaming(t, true, false, "")

			result := BuildOutputPath(doc, "book.qm", "/output", tt.format, env)
			expected := filepath.Join("/output", "book"+tt.ext)

			if result != expected {
				t.Errorf("BuildOutputPath() = %q, want %q", result, expected)
			}
		})
	}
}

func TestBuildOutputPath_Transliterate(t *testing.T) {
	doc := setupTestDocForNaming(t)
	env := setupTestEnvForNaming(t, true, true, "")

	result := BuildOutputPath(doc, "Книга.qm", "/output", FormatText, env)
	expected := filepath.Join("/output", "kniga.txt")

	if result != expected {
		t.Errorf("BuildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_Template(t *testing.T) {
	doc := setupTestDocForNaming(t)
	env := setupTestEnvForNaming(t, true, false, "{{.Title}}/{{.SourceFile}}")

	result := BuildOutputPath(doc, "books/author/book.qm", "/output", FormatText, env)
	expected := filepath.Join("/output", "Test Book", "testbook.txt")

	if result != expected {
		t.Errorf("BuildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_TemplateParseError(t *testing.T) {
	doc := setupTestDocForNaming(t)
	env := setupTestEnvForNaming(t, true, false, "{{.Title")

	// broken template falls back to the default name
	result := BuildOutputPath(doc, "book.qm", "/output", FormatText, env)
	expected := filepath.Join("/output", "book.txt")

	if result != expected {
		t.Errorf("BuildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_TemplateMissingField(t *testing.T) {
	doc := setupTestDocForNaming(t)
	env := setupTestEnvForNaming(t, true, false, "{{.Author}}")

	result := BuildOutputPath(doc, "book.qm", "/output", FormatText, env)
	expected := filepath.Join("/output", "book.txt")

	if result != expected {
		t.Errorf("BuildOutputPath() = %q, want %q", result, expected)
	}
}

func TestDetermineOutputDir_NoDirs(t *testing.T) {
	env := setupTestEnvForNaming(t, true, false, "")

	result := determineOutputDir("books/author/book.qm", "/output", env)
	expected := "/output"

	if result != expected {
		t.Errorf("determineOutputDir() = %q, want %q", result, expected)
	}
}

func TestDetermineOutputDir_WithDirs(t *testing.T) {
	env := setupTestEnvForNaming(t, false, false, "")

	result := determineOutputDir("books/author/book.qm", "/output", env)
	expected := filepath.Join("/output", "books", "author")

	if result != expected {
		t.Errorf("determineOutputDir() = %q, want %q", result, expected)
	}
}

func TestBuildDefaultFileName(t *testing.T) {
	tests := []struct {
		name          string
		src           string
		transliterate bool
		format        Format
		expected      string
	}{
		{"simple text", "book.qm", false, FormatText, "book.txt"},
		{"with path", "path/to/book.qm", false, FormatText, "book.txt"},
		{"xml format", "book.qm", false, FormatXML, "book.xml"},
		{"bundle format", "book.qm", false, FormatBundle, "book.quire"},
		{"transliterate", "Книга.qm", true, FormatText, "kniga.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForNaming(t, true, tt.transliterate, "")

			result := buildDefaultFileName(tt.src, tt.format, env)
			if result != tt.expected {
				t.Errorf("buildDefaultFileName() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{"simple path", "author/book", []string{"author", "book"}},
		{"single segment", "book", []string{"book"}},
		{"with trailing slash", "author/book/", []string{"author", "book"}},
		{"three levels", "genre/author/book", []string{"genre", "author", "book"}},
		{"empty path", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndCleanPath(tt.path)
			if len(result) != len(tt.expected) {
				t.Errorf("splitAndCleanPath() length = %d, want %d", len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("splitAndCleanPath()[%d] = %q, want %q", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestCleanPathSegment(t *testing.T) {
	tests := []struct {
		name          string
		segment       string
		transliterate bool
		expected      string
	}{
		{"simple segment", "author", false, "author"},
		{"with spaces", "My Book", false, "My Book"},
		{"transliterate cyrillic", "Автор", true, "avtor"},
		{"special chars", "book:name", false, "bookname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForNaming(t, true, tt.transliterate, "")

			result := cleanPathSegment(tt.segment, env)
			if result != tt.expected {
				t.Errorf("cleanPathSegment() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestAssemblePathWithSubdirs(t *testing.T) {
	tests := []struct {
		name          string
		outDir        string
		expandedName  string
		transliterate bool
		format        Format
		expected      string
	}{
		{
			"simple template",
			"/output",
			"author/book",
			false,
			FormatText,
			filepath.Join("/output", "author", "book.txt"),
		},
		{
			"single level",
			"/output",
			"book",
			false,
			FormatText,
			filepath.Join("/output", "book.txt"),
		},
		{
			"with transliterate",
			"/output",
			"Автор/Книга",
			true,
			FormatText,
			filepath.Join("/output", "avtor", "kniga.txt"),
		},
		{
			"bundle format",
			"/output",
			"author/book",
			false,
			FormatBundle,
			filepath.Join("/output", "author", "book.quire"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForNaming(t, true, tt.transliterate, "")

			result := assemblePathWithSubdirs(tt.outDir, tt.expandedName, tt.format, env)
			if result != tt.expected {
				t.Errorf("assemblePathWithSubdirs() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestAssemblePathWithSubdirs_EmptyPath(t *testing.T) {
	env := setupTestEnvForNaming(t, true, false, "")

	result := assemblePathWithSubdirs("/output", "", FormatText, env)
	expected := "/output"

	if result != expected {
		t.Errorf("assemblePathWithSubdirs() with empty path = %q, want %q", result, expected)
	}
}

func TestExpandTemplate_Values(t *testing.T) {
	doc := setupTestDocForNaming(t)

	result, err := expandTemplate(doc, config.OutputNameTemplateFieldName, "{{.Title}}-{{.Format}}-{{.ID}}", FormatXML)
	if err != nil {
		t.Fatalf("expandTemplate() failed: %v", err)
	}
	expected := "Test Book-xml-0190f1c2-5a3e-7cc0-8eec-000000000001"
	if result != expected {
		t.Errorf("expandTemplate() = %q, want %q", result, expected)
	}
}
