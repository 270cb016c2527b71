package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/phobologic/c3complete/internal/config"
)

const (
	sentinelStart = "# c3complete:start"
	sentinelEnd   = "# c3complete:end"

	// defaultCacheFile is the conventional `dump --cache` path.
	defaultCacheFile = ".c3complete-cache"
)

// initCommand writes a default config file at the project root and adds a
// c3complete block to .gitignore. The block is wrapped in sentinel comments
// so later runs update it in place without touching surrounding rules.
func initCommand(c *cli.Context) error {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	stdout, stderr := c.App.Writer, c.App.ErrWriter
	dryRun := c.Bool("dry-run")

	cfgPath := filepath.Join(root, config.FileName)
	if p := c.String("config"); p != "" {
		cfgPath = p
	}
	cfgData, err := generateConfig()
	if err != nil {
		return err
	}

	_, statErr := os.Stat(cfgPath)
	writeConfig := errors.Is(statErr, os.ErrNotExist) || c.Bool("force")

	ignorePath := filepath.Join(root, ".gitignore")
	existing, _ := os.ReadFile(ignorePath)
	updated := applySection(string(existing), generateSection())

	if dryRun {
		if writeConfig {
			_, _ = fmt.Fprintf(stdout, "%s:\n%s\n", cfgPath, cfgData)
		}
		_, _ = fmt.Fprintf(stdout, "%s:\n%s", ignorePath, updated)
		return nil
	}

	if writeConfig {
		if err := os.WriteFile(cfgPath, cfgData, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", cfgPath, err)
		}
		_, _ = fmt.Fprintf(stderr, "wrote default config to %s\n", cfgPath)
	} else {
		_, _ = fmt.Fprintf(stderr, "%s exists, keeping it (use --force to overwrite)\n", cfgPath)
	}

	if err := os.WriteFile(ignorePath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ignorePath, err)
	}
	_, _ = fmt.Fprintf(stderr, "wrote c3complete section to %s\n", ignorePath)
	return nil
}

// generateConfig renders the default configuration with a short header.
func generateConfig() ([]byte, error) {
	body, err := config.Default().Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding default config: %w", err)
	}
	header := `# c3complete configuration.
# primary declarations describe the live project, ambient ones are fallbacks.
# Run "c3complete dump" to inspect the flattened index.

`
	return append([]byte(header), body...), nil
}

// generateSection returns the sentinel-wrapped .gitignore block.
func generateSection() string {
	body := `# completion index cache written by "c3complete dump --cache"
` + defaultCacheFile
	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if len(content) == 0 {
		return section + "\n"
	}
	// Append, ensuring a blank line separator.
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
