package backup

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/erazemk/dustgatherer/internal/model"
)

// ProgressFunc receives the completed fraction of a job, in [0, 1].
type ProgressFunc func(fraction float64)

// ImageResolver returns the on-disk path of an item's image, and whether an
// image exists for it.
type ImageResolver func(item *model.Item) (path string, ok bool)

// AssetReader reads stored image blobs.
type AssetReader interface {
	Open(path string) (io.ReadCloser, error)
	Exists(path string) bool
}

// StoredImages resolves images from each item's ImagePath, accepting only
// files that exist in assets.
func StoredImages(assets AssetReader) ImageResolver {
	return func(item *model.Item) (string, bool) {
		if !item.HasImage() || !assets.Exists(*item.ImagePath) {
			return "", false
		}
		return *item.ImagePath, true
	}
}

// Writer produces archives.
type Writer struct {
	Assets          AssetReader
	ProducerVersion string
	// Now defaults to time.Now.
	Now func() time.Time
}

// plannedImage is an image entry to be copied into the archive.
type plannedImage struct {
	entryName string
	path      string
	// duplicate is set when an earlier item already wrote the same file.
	duplicate bool
}

// Write encodes items and their images as an archive into sink.
//
// The manifest is written first, then one image entry per item with a
// resolvable image, in item order. Progress is reported after each entry
// as completed/total where total is 1 plus the number of items with an
// image, so the last report is exactly 1.
func (w *Writer) Write(ctx context.Context, items []model.Item, resolve ImageResolver, sink io.Writer, onProgress ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(float64) {}
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	doc := &Document{
		Manifest: NewManifest(w.ProducerVersion, now(), len(items)),
		Items:    make([]ArchiveItem, 0, len(items)),
	}
	plan := planImages(items, resolve)
	for i := range items {
		var fileName *string
		if p, ok := plan.entries[i]; ok {
			name := strings.TrimPrefix(p.entryName, ImagePrefix)
			fileName = &name
		} else if name, ok := plan.dangling[i]; ok {
			fileName = &name
		}
		doc.Items = append(doc.Items, FromItem(&items[i], fileName))
	}

	total := 1 + len(plan.entries)
	completed := 0
	step := func() {
		completed++
		onProgress(float64(completed) / float64(total))
	}

	zw := zip.NewWriter(sink)
	modified := now()

	manifest, err := zw.CreateHeader(&zip.FileHeader{
		Name:     ManifestEntry,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("creating %s entry: %w", ManifestEntry, err)
	}
	if err := EncodeDocument(manifest, doc); err != nil {
		return err
	}
	step()

	for i := range items {
		p, ok := plan.entries[i]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("export cancelled: %w", err)
		}
		if !p.duplicate {
			if err := w.copyImage(zw, p, modified); err != nil {
				return err
			}
		}
		step()
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	return nil
}

func (w *Writer) copyImage(zw *zip.Writer, p plannedImage, modified time.Time) error {
	src, err := w.Assets.Open(p.path)
	if err != nil {
		return fmt.Errorf("reading image %s: %w", p.path, err)
	}
	defer src.Close()

	// Images are already compressed.
	dst, err := zw.CreateHeader(&zip.FileHeader{
		Name:     p.entryName,
		Method:   zip.Store,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("creating %s entry: %w", p.entryName, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("writing %s entry: %w", p.entryName, err)
	}
	return nil
}

type imagePlan struct {
	entries map[int]plannedImage
	// dangling holds the file names of items whose image could not be
	// resolved. The names are reserved like entry names but have no entry
	// behind them, so import leaves those items without an image.
	dangling map[int]string
}

// planImages assigns a unique entry name to every item with a resolvable
// image, keyed by item index. Items sharing one file share one entry; files
// with clashing base names get a numeric suffix. Items referencing a missing
// file keep a name that no entry uses.
func planImages(items []model.Item, resolve ImageResolver) imagePlan {
	plan := imagePlan{
		entries:  make(map[int]plannedImage),
		dangling: make(map[int]string),
	}
	taken := make(map[string]bool)
	reserve := func(base string) string {
		entry := imageEntryName(base)
		for n := 2; taken[entry]; n++ {
			ext := filepath.Ext(base)
			entry = imageEntryName(strings.TrimSuffix(base, ext) + "-" + strconv.Itoa(n) + ext)
		}
		taken[entry] = true
		return entry
	}

	byPath := make(map[string]string)
	var missing []int
	for i := range items {
		var path string
		ok := false
		if resolve != nil {
			path, ok = resolve(&items[i])
		}
		if !ok {
			if items[i].HasImage() {
				missing = append(missing, i)
			}
			continue
		}
		if entry, seen := byPath[path]; seen {
			plan.entries[i] = plannedImage{entryName: entry, path: path, duplicate: true}
			continue
		}
		entry := reserve(filepath.Base(path))
		byPath[path] = entry
		plan.entries[i] = plannedImage{entryName: entry, path: path}
	}

	gone := make(map[string]string)
	for _, i := range missing {
		path := *items[i].ImagePath
		entry, seen := gone[path]
		if !seen {
			entry = reserve(filepath.Base(path))
			gone[path] = entry
		}
		plan.dangling[i] = strings.TrimPrefix(entry, ImagePrefix)
	}
	return plan
}
