// Command dustgatherer serves the inventory API and backs it up to and
// restores it from zip archives.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/erazemk/dustgatherer/internal/assets"
	"github.com/erazemk/dustgatherer/internal/backup"
	"github.com/erazemk/dustgatherer/internal/config"
	"github.com/erazemk/dustgatherer/internal/db"
	"github.com/erazemk/dustgatherer/internal/metrics"
	"github.com/erazemk/dustgatherer/internal/store"
)

// version is written into every exported manifest.
var version = "1.0.0"

const usageText = `Usage: dustgatherer <command> [flags]

Commands:
  serve      run the HTTP API
  export     write a backup archive
  preview    show how many items an archive holds
  import     restore a backup archive
  version    print the version and exit

Run "dustgatherer <command> -h" for the flags of a command.

Settings are also read from DUSTGATHERER_DB, DUSTGATHERER_IMAGES,
DUSTGATHERER_ADDR and DUSTGATHERER_LOG, and from a .env file in the
working directory.
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		return 1
	}

	switch args[0] {
	case "serve":
		return cmdServe(cfg, args[1:])
	case "export":
		return cmdExport(cfg, args[1:])
	case "preview":
		return cmdPreview(cfg, args[1:])
	case "import":
		return cmdImport(cfg, args[1:])
	case "version":
		fmt.Println(version)
		return 0
	case "help", "-h", "-help", "--help":
		fmt.Fprint(os.Stdout, usageText)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		fmt.Fprint(os.Stderr, usageText)
		return 1
	}
}

// storageFlags registers the flags every command shares.
func storageFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "")
	fs.StringVar(&cfg.ImagesDir, "images", cfg.ImagesDir, "")
	fs.StringVar(&cfg.ImagesDir, "i", cfg.ImagesDir, "")
	fs.StringVar(&cfg.LogPath, "log", cfg.LogPath, "")
	fs.StringVar(&cfg.LogPath, "l", cfg.LogPath, "")
}

const storageUsage = `  -d, -db <path>          SQLite database path (default: dustgatherer.sqlite3)
  -i, -images <dir>       image directory (default: images)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit
`

// parseFlags parses args and reports whether the command should continue,
// and if not, its exit code.
func parseFlags(fs *flag.FlagSet, args []string) (bool, int) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return false, 0
		}
		return false, 1
	}
	return true, 0
}

// inventory bundles the stores a command works on.
type inventory struct {
	db      *sql.DB
	assets  *assets.Local
	backups *backup.Service
}

// openInventory opens the database and image directory named by cfg. The
// database is created when missing.
func openInventory(cfg config.Config, m *metrics.Backup) (*inventory, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	local, err := assets.NewLocal(cfg.ImagesDir)
	if err != nil {
		database.Close()
		return nil, err
	}

	svc := backup.NewService(backup.Config{
		Records:         store.NewItemStore(database),
		Assets:          local,
		History:         &store.JobStore{DB: database},
		Metrics:         m,
		ProducerVersion: version,
	})
	return &inventory{db: database, assets: local, backups: svc}, nil
}

func (inv *inventory) Close() error {
	return inv.db.Close()
}

// ensurePassword sets a generated login password on first run and returns
// it, or returns "" when one is already set.
func ensurePassword(ctx context.Context, database *sql.DB) (string, error) {
	hash, err := store.GetPasswordHash(ctx, database)
	if err != nil {
		return "", err
	}
	if hash != "" {
		return "", nil
	}
	return resetPassword(ctx, database)
}
