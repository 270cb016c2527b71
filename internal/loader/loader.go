// Package loader gathers the inputs of one rebuild: it discovers and parses
// the declaration files, ingests the project authoring files and
// fingerprints everything it read.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/c3complete/internal/discover"
	"github.com/phobologic/c3complete/internal/lang"
	"github.com/phobologic/c3complete/internal/model"
	"github.com/phobologic/c3complete/internal/parse"
	"github.com/phobologic/c3complete/internal/project"
)

// DefaultMaxFileSize skips declaration files larger than this many bytes.
const DefaultMaxFileSize = 8 << 20

// Source describes where the inputs of a rebuild live.
type Source struct {
	Root    string
	Primary discover.Matcher
	Ambient discover.Matcher
	// Project enables ingestion of the authoring files under Root.
	Project        bool
	ProjectOptions project.Options
	MaxFileSize    int64
	Logger         *slog.Logger
}

// input is one file read from disk.
type input struct {
	path string
	data []byte
}

// Load reads every input and returns the bundle. Any parse or decode
// failure aborts the load.
func (s *Source) Load(ctx context.Context) (*model.Bundle, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := xxhash.New()

	primaryFiles, err := s.read(s.Primary, logger)
	if err != nil {
		return nil, fmt.Errorf("primary declarations: %w", err)
	}
	ambientFiles, err := s.read(s.Ambient, logger)
	if err != nil {
		return nil, fmt.Errorf("ambient declarations: %w", err)
	}

	// group markers keep primary and ambient inputs distinct
	_, _ = h.WriteString("primary\x00")
	hashInputs(h, primaryFiles)
	_, _ = h.WriteString("ambient\x00")
	hashInputs(h, ambientFiles)

	primary, err := parseAll(ctx, "primary", primaryFiles)
	if err != nil {
		return nil, err
	}
	ambient, err := parseAll(ctx, "ambient", ambientFiles)
	if err != nil {
		return nil, err
	}

	if s.Project {
		p, err := project.Read(os.DirFS(s.Root))
		if err != nil {
			return nil, err
		}
		_, _ = h.WriteString("project\x00")
		for _, name := range p.Files {
			data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(name)))
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", name, err)
			}
			hashInputs(h, []input{{path: name, data: data}})
		}
		primary.Append(p.Schema(s.ProjectOptions))
		logger.Debug("project ingested",
			slog.Int("object_types", len(p.ObjectTypes)),
			slog.Int("global_vars", len(p.GlobalVars)),
		)
	}

	logger.Debug("declarations loaded",
		slog.Int("primary_files", len(primaryFiles)),
		slog.Int("ambient_files", len(ambientFiles)),
		slog.Int("primary_classes", len(primary.Classes)),
		slog.Int("ambient_classes", len(ambient.Classes)),
	)

	return &model.Bundle{
		Primary:     primary,
		Ambient:     ambient,
		Fingerprint: h.Sum64(),
	}, nil
}

func (s *Source) read(m discover.Matcher, logger *slog.Logger) ([]input, error) {
	paths, err := discover.Files(s.Root, m)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	maxSize := s.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	inputs := make([]input, 0, len(paths))
	for _, rel := range paths {
		abs := filepath.Join(s.Root, filepath.FromSlash(rel))
		fi, err := os.Stat(abs)
		if err == nil && fi.Size() > maxSize {
			logger.Warn("declaration file skipped",
				slog.String("path", rel),
				slog.Int64("size", fi.Size()),
				slog.Int64("max_size", maxSize),
			)
			continue
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}
		inputs = append(inputs, input{path: rel, data: data})
	}
	return inputs, nil
}

func hashInputs(h *xxhash.Digest, files []input) {
	for _, f := range files {
		_, _ = h.WriteString(f.path)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(f.data)
		_, _ = h.Write([]byte{0})
	}
}

// parseAll parses files concurrently and returns one schema holding their
// classes in file order.
func parseAll(ctx context.Context, name string, files []input) (*model.Schema, error) {
	schema := &model.Schema{Name: name}
	if len(files) == 0 {
		return schema, nil
	}

	langs := make([]*lang.Language, len(files))
	for i, f := range files {
		l, ok := lang.Languages[lang.ForExtension(filepath.Ext(f.path))]
		if !ok {
			return nil, fmt.Errorf("%s: unsupported declaration file", f.path)
		}
		langs[i] = l
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	results := make([]*model.Schema, len(files))
	work := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < numWorkers; i++ {
		g.Go(func() error {
			// Each goroutine gets its own parser
			parsers := make(map[string]*parserPair)
			for idx := range work {
				l := langs[idx]
				pp, ok := parsers[l.Name]
				if !ok {
					q, err := l.GetDeclarationQuery()
					if err != nil {
						return fmt.Errorf("%s query: %w", l.Name, err)
					}
					pp = &parserPair{parser: l.NewParser(), query: q}
					parsers[l.Name] = pp
				}
				f := files[idx]
				s, err := parse.ExtractSchema(gctx, pp.parser, pp.query, f.data, f.path)
				if err != nil {
					return err
				}
				results[idx] = s
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(work)
		for i := range files {
			select {
			case work <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range results {
		schema.Append(s)
	}
	return schema, nil
}

type parserPair struct {
	parser *sitter.Parser
	query  *sitter.Query
}
