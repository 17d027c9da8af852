package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docstash-cli/internal/logger"
)

// settleInterval is how long a dropped file's size must hold steady
// before it is considered fully written.
const settleInterval = 500 * time.Millisecond

// settleTimeout bounds how long to wait for a file to stop growing.
const settleTimeout = 30 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a directory and ingest PDFs dropped into it",
	Long: `Watches a directory and ingests every PDF file that appears in it.
Existing PDF files are ingested first, then the command blocks and
reacts to new files until interrupted.

A file that fails to ingest is logged and skipped; the watch keeps
running.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	addIngestFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	p, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	ctx := cmd.Context()

	// Catch up on files that were already there.
	if err := ingestExisting(ctx, p, dir); err != nil {
		return err
	}

	cmd.Printf("Watching %s for PDF files...\n", dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) || !isPDFPath(event.Name) {
				continue
			}
			watchIngest(ctx, p, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// ingestExisting processes PDFs already present in the directory.
func ingestExisting(ctx context.Context, p *pipeline, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !isPDFPath(entry.Name()) {
			continue
		}
		watchIngest(ctx, p, filepath.Join(dir, entry.Name()))
	}
	return nil
}

// watchIngest ingests one file, logging failures instead of stopping
// the watch.
func watchIngest(ctx context.Context, p *pipeline, path string) {
	if err := waitForStable(ctx, path); err != nil {
		logger.Warn("skipping %s: %v", path, err)
		return
	}
	if err := sniffPDF(path); err != nil {
		logger.Warn("skipping %s: %v", path, err)
		return
	}
	if err := p.ingestFile(ctx, path); err != nil {
		logger.Warn("ingesting %s failed: %v", path, err)
	}
}

// waitForStable blocks until the file's size stops changing, so a
// file still being copied in is not read half-written.
func waitForStable(ctx context.Context, path string) error {
	deadline := time.Now().Add(settleTimeout)
	lastSize := int64(-1)

	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == lastSize && info.Size() > 0 {
			return nil
		}
		lastSize = info.Size()

		if time.Now().After(deadline) {
			return fmt.Errorf("%s did not settle within %s", path, settleTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settleInterval):
		}
	}
}

// isPDFPath reports whether the path names a PDF by extension.
func isPDFPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
