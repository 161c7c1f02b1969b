package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/erazemk/dustgatherer/internal/model"
)

// RecordStore is the inventory record store import and export work against.
type RecordStore interface {
	ListItems(ctx context.Context) ([]model.Item, error)
	GetItem(ctx context.Context, id int64) (*model.Item, error)
	CreateItems(ctx context.Context, items []model.Item) ([]int64, error)
	UpdateItem(ctx context.Context, item *model.Item) error
}

// AssetWriter stores image blobs under fresh, collision-free names.
type AssetWriter interface {
	Save(r io.Reader, ext string) (string, error)
}

// Outcome summarises a finished import.
type Outcome struct {
	// TotalItems is the count declared by the manifest, which differs from
	// ImportedCount+SkippedCount when the archive is truncated.
	TotalItems    int      `json:"total_items"`
	ImportedCount int      `json:"imported_count"`
	SkippedCount  int      `json:"skipped_count"`
	Errors        []string `json:"errors"`
}

// Importer merges archives into the record and asset stores.
type Importer struct {
	Records RecordStore
	Assets  AssetWriter
}

// Import restores an archive.
//
// The manifest is read and version-checked before anything is written.
// Pass one then extracts every image entry under a new name. Pass two walks
// the items in archive order and applies the strategy: replacements are
// written immediately, new items are inserted together at the end. An error
// on one item is recorded in the outcome and counted as skipped; it does
// not stop the import.
//
// Cancelling ctx stops the import between entries or items. Replacements
// already written stay; staged insertions are dropped.
func (im *Importer) Import(ctx context.Context, src io.ReaderAt, size int64, strategy Strategy, onProgress ProgressFunc) (*Outcome, error) {
	if strategy == nil {
		return nil, fmt.Errorf("importing archive: no conflict strategy")
	}
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	zr, err := openArchive(src, size)
	if err != nil {
		return nil, err
	}
	doc, err := readManifest(zr)
	if err != nil {
		return nil, err
	}

	extracted, err := im.extractImages(ctx, zr)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		TotalItems: doc.Manifest.ItemCount,
		Errors:     []string{},
	}
	var staged []model.Item

	n := len(doc.Items)
	for i := range doc.Items {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("import cancelled: %w", err)
		}

		entry := &doc.Items[i]
		item, action, err := im.reconcile(ctx, entry, extracted, strategy)
		switch {
		case err != nil:
			msg := fmt.Sprintf("Failed to import item '%s': %v", entry.Title, err)
			slog.Warn("import item failed", "title", entry.Title, "archive_id", entry.ID, "error", err)
			outcome.Errors = append(outcome.Errors, msg)
			outcome.SkippedCount++
		case action == ActionSkip:
			outcome.SkippedCount++
		case action == ActionInsert:
			staged = append(staged, *item)
			outcome.ImportedCount++
		default:
			outcome.ImportedCount++
		}

		onProgress(float64(i+1) / float64(n))
	}

	if len(staged) > 0 {
		if _, err := im.Records.CreateItems(ctx, staged); err != nil {
			return nil, fmt.Errorf("inserting imported items: %w", err)
		}
	}
	if n == 0 {
		onProgress(1)
	}
	return outcome, nil
}

// reconcile decides and, for replacements, applies the action for one
// archive item. Items to insert are returned with ID 0 for the caller to
// stage.
func (im *Importer) reconcile(ctx context.Context, entry *ArchiveItem, extracted map[string]string, strategy Strategy) (*model.Item, Action, error) {
	existing, err := im.Records.GetItem(ctx, entry.ID)
	if err != nil {
		return nil, 0, err
	}

	var imagePath *string
	if entry.ImageFileName != nil {
		if p, ok := extracted[*entry.ImageFileName]; ok {
			imagePath = &p
		}
	}

	action := Resolve(existing, strategy)
	switch action {
	case ActionSkip:
		return nil, action, nil
	case ActionReplace:
		item, err := entry.ToItem(imagePath)
		if err != nil {
			return nil, action, err
		}
		item.ID = existing.ID
		if err := im.Records.UpdateItem(ctx, item); err != nil {
			return nil, action, err
		}
		return item, action, nil
	case ActionInsert:
		item, err := entry.ToItem(imagePath)
		if err != nil {
			return nil, action, err
		}
		return item, action, nil
	default:
		return nil, action, fmt.Errorf("unhandled action %s", action)
	}
}

// extractImages saves every images/ entry and maps its archive file name to
// the stored path. A blob that cannot be saved is logged and left out of the
// map, so items referencing it import without an image.
func (im *Importer) extractImages(ctx context.Context, zr *zip.Reader) (map[string]string, error) {
	extracted := make(map[string]string)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("import cancelled: %w", err)
		}
		if !strings.HasPrefix(f.Name, ImagePrefix) || f.FileInfo().IsDir() {
			continue
		}
		name := strings.TrimPrefix(f.Name, ImagePrefix)
		if name == "" {
			continue
		}

		stored, err := im.saveImage(f, name)
		if err != nil {
			slog.Warn("skipping archive image", "entry", f.Name, "error", err)
			continue
		}
		extracted[name] = stored
	}
	return extracted, nil
}

func (im *Importer) saveImage(f *zip.File, name string) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("opening entry: %w", err)
	}
	defer rc.Close()

	ext := strings.TrimPrefix(path.Ext(name), ".")
	stored, err := im.Assets.Save(rc, ext)
	if err != nil {
		return "", err
	}
	return stored, nil
}
