// c3complete flattens Construct 3 runtime declarations into a path index and
// answers property completion queries against it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/c3complete/internal/complete"
	"github.com/phobologic/c3complete/internal/config"
	"github.com/phobologic/c3complete/internal/discover"
	"github.com/phobologic/c3complete/internal/graph"
	"github.com/phobologic/c3complete/internal/loader"
	"github.com/phobologic/c3complete/internal/merge"
	"github.com/phobologic/c3complete/internal/project"
	"github.com/phobologic/c3complete/internal/server"
	"github.com/phobologic/c3complete/internal/store"
	"github.com/phobologic/c3complete/internal/toon"
	"github.com/phobologic/c3complete/internal/watch"
)

var version = "dev"

func main() {
	gin.SetMode(gin.ReleaseMode)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := runContext(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	return runContext(context.Background(), args, stdout, stderr)
}

func runContext(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	app := &cli.App{
		Name:      "c3complete",
		Usage:     "Property completion for Construct 3 runtime declarations",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (default <root>/" + config.FileName + ")",
			},
			&cli.Int64Flag{
				Name:  "max-file-size",
				Usage: "Skip declaration files larger than this many bytes",
				Value: loader.DefaultMaxFileSize,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log at debug level",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "complete",
				Usage:     "Print completion candidates for a partial expression",
				ArgsUsage: "<token>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "max",
						Aliases: []string{"n"},
						Usage:   "Maximum candidates (0 = config value)",
					},
					&cli.BoolFlag{
						Name:    "json",
						Aliases: []string{"j"},
						Usage:   "Output as JSON",
					},
				},
				Action: completeCommand,
			},
			{
				Name:  "dump",
				Usage: "Print the flattened path index",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "path",
						Aliases: []string{"p"},
						Usage:   "Only paths under this dotted prefix",
					},
					&cli.StringFlag{
						Name:  "cache",
						Usage: "Cache file path",
					},
				},
				Action: dumpCommand,
			},
			{
				Name:  "serve",
				Usage: "Serve completions over HTTP, rebuilding on file changes",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides config)",
					},
					&cli.BoolFlag{
						Name:  "no-watch",
						Usage: "Do not rebuild on file changes",
					},
				},
				Action: serveCommand,
			},
			{
				Name:  "init",
				Usage: "Write " + config.FileName + " and ignore the dump cache in .gitignore",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Print what would be written without modifying any file",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing config file",
					},
				},
				Action: initCommand,
			},
		},
	}
	return app.RunContext(ctx, append([]string{"c3complete"}, args...))
}

// env is the state every command starts from.
type env struct {
	root   string
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
}

func setup(c *cli.Context) (*env, error) {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", root)
	}

	var cfg *config.Config
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(root)
	}
	if err != nil {
		return nil, err
	}

	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))

	return &env{root: root, cfg: cfg, logger: logger, stdout: c.App.Writer}, nil
}

func (e *env) newStore(c *cli.Context) *store.Store {
	src := &loader.Source{
		Root:    e.root,
		Primary: e.cfg.PrimaryMatcher(),
		Ambient: e.cfg.AmbientMatcher(),
		Project: e.cfg.Project.Enabled,
		ProjectOptions: project.Options{
			RootClass:     e.cfg.RootClass,
			RegistryClass: e.cfg.Project.RegistryClass,
			GlobalsClass:  e.cfg.Project.GlobalsClass,
		},
		MaxFileSize: c.Int64("max-file-size"),
		Logger:      e.logger,
	}
	return store.New(src, storeOptions(e.cfg), e.logger)
}

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		RootSymbol: cfg.RootSymbol,
		RootClass:  cfg.RootClass,
		Graph: graph.Options{
			MaxDepth:       cfg.MaxDepth,
			CyclicSegments: cfg.CyclicSegments,
		},
		Merge: merge.Options{
			Registry:    cfg.Registry.Path,
			Namespaces:  cfg.Registry.Namespaces,
			SearchDepth: merge.DefaultOptions().SearchDepth,
		},
		MaxResults: cfg.Complete.MaxResults,
	}
}

func completeCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("complete: missing token")
	}
	token := c.Args().First()

	e, err := setup(c)
	if err != nil {
		return err
	}
	if n := c.Int("max"); n > 0 {
		e.cfg.Complete.MaxResults = n
	}

	s := e.newStore(c)
	if _, _, err := s.Rebuild(c.Context, "cli", false); err != nil {
		return err
	}
	candidates := s.Query(token)

	if c.Bool("json") {
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(server.CompleteResponse{
			Snapshot:   s.Current().ID.String(),
			Token:      token,
			Candidates: candidates,
		})
	}
	_, _ = fmt.Fprintln(e.stdout, toon.EncodeCompletion(token, candidates))
	return nil
}

func dumpCommand(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}

	cachePath := c.String("cache")
	if cachePath != "" {
		files, err := discover.Files(e.root, e.cfg.WatchMatcher())
		if err != nil {
			return fmt.Errorf("discovering files: %w", err)
		}
		if cacheIsFresh(cachePath, e.root, files) {
			data, err := os.ReadFile(cachePath)
			if err == nil {
				_, _ = e.stdout.Write(data)
				return nil
			}
		}
	}

	s := e.newStore(c)
	snap, _, err := s.Rebuild(c.Context, "cli", false)
	if err != nil {
		return err
	}

	var prefix []string
	if p := c.String("path"); p != "" {
		prefix = splitPath(p)
	}
	output := toon.EncodeIndex(toon.Summary{
		Root:        e.cfg.RootSymbol,
		Entries:     snap.Entries,
		ObjectTypes: snap.Merge.ObjectTypes,
		Conflicts:   snap.Merge.Conflicts,
		Cutoffs:     snap.Walk.DepthCutoffs + snap.Walk.RootCutoffs + snap.Walk.CycleCutoffs,
	}, s.Symbols(prefix))

	if cachePath != "" {
		_ = os.WriteFile(cachePath, []byte(output+"\n"), 0o644)
	}
	_, _ = fmt.Fprintln(e.stdout, output)
	return nil
}

// cacheIsFresh reports whether the cache is newer than the config file and
// every file that can affect the index.
func cacheIsFresh(cachePath, root string, files []string) bool {
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return false
	}
	cacheMtime := cacheInfo.ModTime()

	if fi, err := os.Stat(filepath.Join(root, config.FileName)); err == nil && !fi.ModTime().Before(cacheMtime) {
		return false
	}
	for _, f := range files {
		fi, err := os.Stat(filepath.Join(root, filepath.FromSlash(f)))
		if err != nil {
			return false
		}
		if !fi.ModTime().Before(cacheMtime) {
			return false
		}
	}
	return true
}

// splitPath turns a dotted or bracketed expression into index segments.
func splitPath(p string) []string {
	p = strings.Trim(complete.Normalize(p), ".")
	if p == "" {
		return nil
	}
	return strings.Split(p, ".")
}

func serveCommand(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	addr := e.cfg.Server.Addr
	if a := c.String("addr"); a != "" {
		addr = a
	}

	var w *watch.Watcher
	if e.cfg.Watch.Enabled && !c.Bool("no-watch") {
		if w, err = watch.New(e.root, e.cfg.WatchMatcher(), e.cfg.Watch.Debounce(), e.logger); err != nil {
			return err
		}
	}

	s := e.newStore(c)
	// A broken initial build still serves: the watcher can publish once
	// the inputs are fixed.
	_, _, _ = s.Rebuild(c.Context, "startup", false)

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		return server.Serve(ctx, addr, server.NewRouter(server.NewHandlers(s, e.logger)), e.logger)
	})
	if w != nil {
		g.Go(func() error {
			return w.Run(ctx, func(ctx context.Context, changed []string) {
				e.logger.Info("rebuilding after change",
					slog.Int("files", len(changed)),
					slog.String("first", changed[0]),
				)
				_, _, _ = s.Rebuild(ctx, "watch", false)
			})
		})
	}
	return g.Wait()
}
