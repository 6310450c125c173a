// Package compile drives document compilation. It discovers sources on disk
// or inside zip archives, runs the front end matching each source's
// extension, paginates the content tree and hands the finished document to
// the exporters.
package compile

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"
	"gopkg.in/yaml.v3"

	"quire/archive"
	"quire/assets"
	"quire/cache"
	"quire/config"
	"quire/content"
	"quire/diag"
	"quire/export"
	"quire/geom"
	"quire/layout"
	"quire/markdown"
	"quire/markup"
	"quire/misc"
	"quire/source"
	"quire/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("compile")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	format := export.MustParseFormat(env.Cfg.Output.Format)
	if to := cmd.String("to"); len(to) > 0 {
		f, ferr := export.ParseFormat(to)
		if ferr != nil {
			log.Warn("Unknown output format requested, using configured default", zap.Error(ferr), zap.Stringer("format", format))
		} else {
			format = f
		}
	}

	env.NoDirs, env.Overwrite, env.Preview = cmd.Bool("nodirs"), cmd.Bool("overwrite"), cmd.Bool("preview")

	// Zip does not define a file name encoding, allow forcing one for
	// archives produced by legacy tools.
	if cp := cmd.String("force-zip-cp"); len(cp) > 0 {
		enc, cperr := ianaindex.IANA.Encoding(cp)
		if cperr != nil {
			log.Warn("Unknown character set, ignoring", zap.String("charset", cp), zap.Error(cperr))
			enc = nil
		} else {
			n, _ := ianaindex.IANA.Name(enc)
			log.Debug("Decoding non UTF-8 file names in archives", zap.String("charset", n))
		}
		env.CodePage = enc
	}

	if env.Cfg.Cache.Enable {
		if env.Cache, err = cache.Open(env.Cfg.Cache.Path, log); err != nil {
			return fmt.Errorf("unable to open cache: %w", err)
		}
		defer func() {
			if cerr := env.Cache.Close(); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("unable to close cache: %w", cerr))
			}
		}()
		if days := env.Cfg.Cache.MaxAgeDays; days > 0 {
			if _, perr := env.Cache.Prune(time.Duration(days) * 24 * time.Hour); perr != nil {
				log.Warn("Unable to prune cache", zap.Error(perr))
			}
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst), zap.Stringer("format", format))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, format, log)
}

// process determines what the input path points at: a directory, a zip
// archive (possibly with a path inside it) or a single source file, and
// dispatches accordingly. Archive paths are recognized by walking the path
// components from the tail until something exists on disk.
func process(ctx context.Context, src, dst string, format export.Format, log *zap.Logger) error {
	var head, tail string
	for head = src; len(head) != 0; head, tail = filepath.Split(head) {
		if err := ctx.Err(); err != nil {
			return err
		}

		head = strings.TrimSuffix(head, string(filepath.Separator))

		fi, err := os.Stat(head)
		if err != nil {
			// does not exist yet, could be a path inside an archive
			continue
		}

		if fi.Mode().IsDir() {
			if len(tail) != 0 {
				// a directory swallows the whole path, a leftover tail means
				// the full input does not exist
				return fmt.Errorf("input source was not found (%s) => (%s)", head, strings.TrimPrefix(src, head))
			}
			if err := processDir(ctx, head, dst, format, log); err != nil {
				return fmt.Errorf("unable to process directory: %w", err)
			}
			break
		}

		if !fi.Mode().IsRegular() {
			return fmt.Errorf("unexpected path mode for (%s) => (%s)", head, strings.TrimPrefix(src, head))
		}

		isArchive, err := isArchiveFile(head)
		if err != nil {
			return fmt.Errorf("unable to check archive type: %w", err)
		}
		if isArchive {
			tail = strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			if err := processArchive(ctx, head, tail, "", dst, format, log); err != nil {
				return fmt.Errorf("unable to process archive: %w", err)
			}
			break
		}

		isSource, enc, err := isSourceFile(head)
		if err != nil {
			return fmt.Errorf("unable to check file type: %w", err)
		}
		if isSource && len(tail) == 0 {
			// a single source file cannot have a tail
			if file, err := os.Open(head); err != nil {
				log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
			} else {
				defer file.Close()
				if err := processDoc(ctx, selectReader(file, enc), filepath.Base(head), dst, filepath.Dir(head), format, log); err != nil {
					log.Error("Unable to process file", zap.String("file", head), zap.Error(err))
				}
			}
			break
		}
		return fmt.Errorf("input was not recognized as a document source (%s)", head)
	}
	if len(head) == 0 {
		return fmt.Errorf("input source was not found (%s)", src)
	}
	return nil
}

// processDir walks the directory tree compiling every source file and
// archive it finds. Individual failures are logged, the walk continues.
func processDir(ctx context.Context, dir, dst string, format export.Format, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		isArchive, err := isArchiveFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if isArchive {
			if err := processArchive(ctx, path, "", filepath.Dir(strings.TrimPrefix(path, dir)), dst, format, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			return nil
		}

		isSource, enc, err := isSourceFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !isSource {
			log.Debug("Skipping file, not recognized as source or archive", zap.String("file", path))
			return nil
		}

		count++

		file, err := os.Open(path)
		if err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
			return nil
		}
		defer file.Close()

		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processDoc(ctx, selectReader(file, enc), src, dst, filepath.Dir(path), format, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
		return nil
	})
	return err
}

// processArchive compiles every source file under pathIn inside the zip at
// path. pathOut is prepended to entry names when deriving output paths so
// the on disk directory structure survives.
func processArchive(ctx context.Context, path, pathIn, pathOut, dst string, format export.Format, log *zap.Logger) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	err = archive.Walk(path, pathIn, sourceExtensions, func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		isSource, enc, err := isSourceInArchive(f)
		if err != nil {
			log.Warn("Skipping file in archive",
				zap.String("archive", arc), zap.String("path", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		if !isSource {
			log.Debug("Skipping file, not recognized as source", zap.String("archive", arc), zap.String("file", f.FileHeader.Name))
			return nil
		}

		count++

		r, err := f.Open()
		if err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
			return nil
		}
		defer r.Close()

		cp := state.EnvFromContext(ctx).CodePage

		pathInArchive := f.FileHeader.Name
		if cp != nil && f.FileHeader.NonUTF8 {
			if n, err := cp.NewDecoder().String(pathInArchive); err == nil {
				pathInArchive = n
			} else {
				n, _ = ianaindex.IANA.Name(cp)
				log.Warn("Unable to decode archive entry name",
					zap.String("charset", n), zap.String("path", pathInArchive), zap.Error(err))
			}
		}
		// Image references cannot be resolved inside the zip, resolve them
		// next to the archive instead.
		if err := processDoc(ctx, selectReader(r, enc), filepath.Join(pathOut, pathInArchive), dst, filepath.Dir(path), format, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", f.FileHeader.Name), zap.Error(err))
		}
		return nil
	})
	return err
}

// processDoc compiles a single document. "src" is the source path relative
// to whatever was given on the command line (a bare file name for single
// files, a relative path for directory and archive walks), "root" is the
// directory image references resolve against, "dst" the destination
// directory.
func processDoc(ctx context.Context, r io.Reader, src, dst, root string, format export.Format, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var docID, outputName string

	log.Info("Compilation starting", zap.String("from", src))
	defer func(start time.Time) {
		// One broken document must not stop a batch, recover and report.
		if r := recover(); r != nil {
			log.Error("Compilation ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("compilation panic: %v", r)
		} else {
			log.Info("Compilation completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.String("doc_id", docID))
		}
	}(time.Now())

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("unable to read source (%s): %w", src, err)
	}

	// Cached results can only be reused when the output path does not
	// depend on parsed metadata and no side files are produced next to it.
	useCache := env.Cache != nil && len(env.Cfg.Output.NameTemplate) == 0 &&
		(format == export.FormatBundle || !(env.Preview || env.Cfg.Output.Preview))
	var key string
	if useCache {
		if key, err = resultKey(env, format, data); err != nil {
			log.Warn("Unable to build cache key", zap.Error(err))
			useCache = false
		}
	}
	if useCache {
		entry, err := env.Cache.Get(key)
		if err != nil {
			log.Warn("Cache lookup failed", zap.Error(err))
		} else if entry != nil {
			outputName = export.BuildOutputPath(&export.Document{SourceName: filepath.Base(src)}, src, dst, format, env)
			if err := writeCached(outputName, entry, env, log); err != nil {
				return err
			}
			storeResult(env, key[:12], outputName, nil)
			return nil
		}
	}

	doc, err := CompileSource(ctx, src, data, root, env.Cfg, log)
	if err != nil {
		return fmt.Errorf("unable to compile source (%s): %w", src, err)
	}
	docID = doc.ID.String()

	outputName = export.BuildOutputPath(doc, src, dst, format, env)

	if err := export.Generate(ctx, format, doc, outputName, log); err != nil {
		return fmt.Errorf("unable to generate output: %w", err)
	}

	if (env.Preview || env.Cfg.Output.Preview) && format != export.FormatBundle {
		if err := export.WritePreviewFiles(doc, outputName, log); err != nil {
			return fmt.Errorf("unable to write previews: %w", err)
		}
	}

	if useCache {
		if out, err := os.ReadFile(outputName); err != nil {
			log.Warn("Unable to read output back for caching", zap.Error(err))
		} else if err := env.Cache.Put(key, len(doc.Pages), out); err != nil {
			log.Warn("Unable to store result in cache", zap.Error(err))
		}
	}

	storeResult(env, docID, outputName, doc.Diags)
	return nil
}

// CompileSource parses, paginates and resolves assets for one in-memory
// document. name selects the front end by extension and becomes the
// document's source name, root is the directory image paths resolve
// against. It is the shared core of the CLI driver and the HTTP service.
func CompileSource(ctx context.Context, name string, data []byte, root string, cfg *config.Config, log *zap.Logger) (*export.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	setup, err := SetupFromConfig(&cfg.Document)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("unable to allocate document id: %w", err)
	}

	src := source.New(name, string(data))
	diags := diag.NewCollector()

	var tree *content.Node
	if strings.EqualFold(filepath.Ext(name), ".md") {
		tree = markdown.Parse(src, diags, log)
	} else {
		tree = markup.Parse(src, diags, log)
	}

	engine := layout.NewEngine(layout.Options{
		Setup:        setup,
		AutoFlow:     cfg.Document.AutoFlow,
		CharsPerPage: cfg.Document.CharsPerPage,
	}, diags, log)

	pages, err := engine.Paginate(ctx, tree)
	if err != nil {
		return nil, err
	}

	loader := assets.NewLoader(assets.Options{
		Root:           root,
		MinJPEGQuality: cfg.Assets.MinJPEGQuality,
		MaxRasterDim:   cfg.Assets.MaxRasterDim,
		UsePlaceholder: cfg.Assets.UsePlaceholder,
	}, log)
	list := collectAssets(pages, loader, diags)

	return &export.Document{
		ID:         id,
		Title:      docTitle(tree),
		SourceName: filepath.Base(name),
		Pages:      pages,
		Diags:      diags.Drain(),
		Assets:     list,
	}, nil
}

// SetupFromConfig translates the document section of the configuration into
// the initial page setup.
func SetupFromConfig(dc *config.DocumentConfig) (layout.Setup, error) {
	setup := layout.DefaultSetup()

	if dc.Paper != "" {
		size, err := geom.Paper(dc.Paper)
		if err != nil {
			return layout.Setup{}, fmt.Errorf("configuration: %w", err)
		}
		setup.Size = size
	}
	if dc.Margins.All != "" {
		l, err := geom.ParseLength(dc.Margins.All)
		if err != nil {
			return layout.Setup{}, fmt.Errorf("configuration: %w", err)
		}
		setup.Margins = geom.UniformMargins(l)
	}
	for _, m := range []struct {
		target *geom.Length
		value  string
	}{
		{&setup.Margins.Top, dc.Margins.Top},
		{&setup.Margins.Bottom, dc.Margins.Bottom},
		{&setup.Margins.Left, dc.Margins.Left},
		{&setup.Margins.Right, dc.Margins.Right},
	} {
		if m.value == "" {
			continue
		}
		l, err := geom.ParseLength(m.value)
		if err != nil {
			return layout.Setup{}, fmt.Errorf("configuration: %w", err)
		}
		*m.target = l
	}
	setup.Flipped = dc.Flipped
	if dc.Columns > 0 {
		setup.Columns = dc.Columns
	}
	return setup, nil
}

// docTitle returns the text of the first heading, the customary document
// title.
func docTitle(tree *content.Node) string {
	var title string
	tree.Walk(func(n *content.Node) bool {
		if title == "" && n.Kind == content.KindText && n.Text != nil && n.Text.Heading {
			title = n.Text.Body
			return false
		}
		return true
	})
	return title
}

// collectAssets loads every image referenced from the finalized pages, in
// order of first appearance.
func collectAssets(pages []*layout.Page, loader *assets.Loader, diags *diag.Collector) []*assets.Asset {
	var list []*assets.Asset
	seen := make(map[string]bool)
	for _, p := range pages {
		for _, b := range p.Blocks {
			b.Walk(func(n *content.Node) bool {
				if n.Kind != content.KindImage || n.Image == nil || seen[n.Image.Path] {
					return true
				}
				seen[n.Image.Path] = true
				if a := loader.Load(n.Image.Path, n.Span, diags); a != nil {
					list = append(list, a)
				}
				return true
			})
		}
	}
	return list
}

// resultKey serializes the configuration sections that shape the output and
// derives the cache key from them, the program version, the format and the
// source bytes.
func resultKey(env *state.LocalEnv, format export.Format, data []byte) (string, error) {
	relevant := struct {
		Document config.DocumentConfig `yaml:"document"`
		Output   config.OutputConfig   `yaml:"output"`
		Assets   config.AssetsConfig   `yaml:"assets"`
		Preview  bool                  `yaml:"preview"`
	}{env.Cfg.Document, env.Cfg.Output, env.Cfg.Assets, env.Preview || env.Cfg.Output.Preview}
	cfgBytes, err := yaml.Marshal(relevant)
	if err != nil {
		return "", err
	}
	return cache.Key(misc.GetVersion(), format.String(), cfgBytes, data), nil
}

// writeCached places a cached result at outputName, honoring the overwrite
// guard the exporters apply.
func writeCached(outputName string, entry *cache.Entry, env *state.LocalEnv, log *zap.Logger) error {
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	if err := os.WriteFile(outputName, entry.Data, 0644); err != nil {
		return fmt.Errorf("unable to write cached output: %w", err)
	}
	log.Info("Cache hit", zap.String("to", outputName), zap.Int("pages", entry.Pages))
	return nil
}

// storeResult records the produced file and its diagnostics in the debug
// report when one is active.
func storeResult(env *state.LocalEnv, id, outputName string, diags []diag.Diagnostic) {
	if env.Rpt == nil {
		return
	}
	env.Rpt.Store(fmt.Sprintf("result-%s%s", id, filepath.Ext(outputName)), outputName)
	if len(diags) > 0 {
		env.Rpt.StoreData(fmt.Sprintf("diag-%s.txt", id), renderDiags(diags))
	}
}

func renderDiags(list []diag.Diagnostic) []byte {
	var buf bytes.Buffer
	for _, d := range list {
		buf.WriteString(d.String())
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
