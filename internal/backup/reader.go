package backup

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

var (
	// ErrMissingManifest is returned for archives without inventory.json.
	ErrMissingManifest = errors.New("archive missing manifest")
	// ErrUnsupportedVersion is returned for archives written in a newer
	// format than CurrentFormatVersion.
	ErrUnsupportedVersion = errors.New("archive format version not supported")
	// ErrInvalidArchive is returned when the source is not a readable zip or
	// its manifest is not valid JSON.
	ErrInvalidArchive = errors.New("invalid archive")
)

// openArchive opens the zip directory of src.
func openArchive(src io.ReaderAt, size int64) (*zip.Reader, error) {
	zr, err := zip.NewReader(src, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	return zr, nil
}

// readManifest finds, decodes and version-checks inventory.json. Entries
// may appear in any order.
func readManifest(zr *zip.Reader) (*Document, error) {
	for _, f := range zr.File {
		if f.Name != ManifestEntry || f.FileInfo().IsDir() {
			continue
		}
		doc, err := decodeEntry(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
		}
		if err := checkVersion(doc.Manifest); err != nil {
			return nil, err
		}
		return doc, nil
	}
	return nil, ErrMissingManifest
}

func decodeEntry(f *zip.File) (*Document, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	return DecodeDocument(rc)
}

func checkVersion(m Manifest) error {
	if m.FormatVersion > CurrentFormatVersion {
		return fmt.Errorf("%w: archive is version %d, this build reads up to %d; update the app",
			ErrUnsupportedVersion, m.FormatVersion, CurrentFormatVersion)
	}
	return nil
}

// Preview returns the item count declared by an archive's manifest without
// reading any image entry.
func Preview(src io.ReaderAt, size int64) (int, error) {
	zr, err := openArchive(src, size)
	if err != nil {
		return 0, err
	}
	doc, err := readManifest(zr)
	if err != nil {
		return 0, err
	}
	return doc.Manifest.ItemCount, nil
}
