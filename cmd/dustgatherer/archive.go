package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/erazemk/dustgatherer/internal/backup"
	"github.com/erazemk/dustgatherer/internal/config"
)

func cmdExport(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	storageFlags(fs, &cfg)
	output := fmt.Sprintf("dustgatherer-backup-%s.zip", time.Now().Format("2006-01-02"))
	fs.StringVar(&output, "output", output, "")
	fs.StringVar(&output, "o", output, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: dustgatherer export [flags]

Flags:
  -o, -output <file>      archive to write (default: dustgatherer-backup-<date>.zip)
`+storageUsage)
	}
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}

	return withInventory(cfg, func(ctx context.Context, inv *inventory) error {
		// Write next to the target and rename, so a failed export never
		// leaves a partial archive under the requested name.
		tmp, err := os.CreateTemp(filepath.Dir(output), ".dustgatherer-export-*.zip")
		if err != nil {
			return fmt.Errorf("creating archive: %w", err)
		}
		defer os.Remove(tmp.Name())

		if err := inv.backups.Export(ctx, tmp, progressPrinter(os.Stderr, "Exporting")); err != nil {
			tmp.Close()
			return err
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("closing archive: %w", err)
		}
		if err := os.Rename(tmp.Name(), output); err != nil {
			return fmt.Errorf("saving archive: %w", err)
		}
		fmt.Printf("Archive written: %s\n", output)
		return nil
	})
}

func cmdPreview(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	storageFlags(fs, &cfg)
	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: dustgatherer preview [flags] <archive.zip>

Flags:
`+storageUsage)
	}
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}

	closeLog, err := setupLogger(cfg.LogPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer closeLog()

	f, size, err := openArchive(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer f.Close()

	count, err := backup.Preview(f, size)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Printf("%s: %d item(s)\n", fs.Arg(0), count)
	return 0
}

// strategyNames lists the conflict strategies as "a, b or c".
func strategyNames() string {
	names := make([]string, 0, len(backup.Strategies))
	for _, s := range backup.Strategies {
		names = append(names, s.String())
	}
	if len(names) < 2 {
		return strings.Join(names, "")
	}
	return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
}

func cmdImport(cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	storageFlags(fs, &cfg)
	strategyName := backup.SkipExisting.String()
	fs.StringVar(&strategyName, "strategy", strategyName, "")
	fs.StringVar(&strategyName, "s", strategyName, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: dustgatherer import [flags] <archive.zip>

Flags:
  -s, -strategy <name>    what to do with items that already exist:
                          `+strategyNames()+` (default: `+backup.SkipExisting.String()+`)
`+storageUsage)
	}
	if ok, code := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}
	strategy, err := backup.ParseStrategy(strategyName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	return withInventory(cfg, func(ctx context.Context, inv *inventory) error {
		f, size, err := openArchive(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()

		outcome, err := inv.backups.Import(ctx, f, size, strategy, progressPrinter(os.Stderr, "Importing"))
		if err != nil {
			return err
		}
		printOutcome(os.Stdout, outcome)
		return nil
	})
}

// withInventory runs fn against the configured stores with a context that
// is cancelled on SIGINT or SIGTERM, and turns its error into an exit code.
func withInventory(cfg config.Config, fn func(context.Context, *inventory) error) int {
	closeLog, err := setupLogger(cfg.LogPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer closeLog()

	inv, err := openInventory(cfg, nil)
	if err != nil {
		slog.Error("failed to open inventory", "error", err)
		return 1
	}
	defer inv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := fn(ctx, inv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// openArchive opens path for random access.
func openArchive(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening archive: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("reading archive: %w", err)
	}
	return f, info.Size(), nil
}

// progressPrinter reports whole percentages on one terminal line.
func progressPrinter(w io.Writer, label string) backup.ProgressFunc {
	last := -1
	return func(fraction float64) {
		pct := int(fraction * 100)
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\r%s... %3d%%", label, pct)
		if pct >= 100 {
			fmt.Fprintln(w)
		}
	}
}

// printOutcome writes an import summary.
func printOutcome(w io.Writer, o *backup.Outcome) {
	fmt.Fprintf(w, "Imported: %d\n", o.ImportedCount)
	fmt.Fprintf(w, "Skipped:  %d\n", o.SkippedCount)
	if o.TotalItems != o.ImportedCount+o.SkippedCount {
		fmt.Fprintf(w, "Archive declared %d item(s); it may be truncated.\n", o.TotalItems)
	}
	for _, msg := range o.Errors {
		fmt.Fprintf(w, "  %s\n", msg)
	}
}
