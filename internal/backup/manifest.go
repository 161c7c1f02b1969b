package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/dustgatherer/internal/model"
)

// CurrentFormatVersion is the newest archive format this package reads and
// the one it writes.
const CurrentFormatVersion = 1

// Entry names inside an archive.
const (
	ManifestEntry = "inventory.json"
	ImagePrefix   = "images/"
)

// manifestTimeLayout matches the local date-time stamp written by earlier
// releases.
const manifestTimeLayout = "2006-01-02T15:04:05"

// Manifest describes an archive.
type Manifest struct {
	FormatVersion   int    `json:"version"`
	ProducerVersion string `json:"appVersion"`
	CreatedAt       string `json:"exportDate"`
	ItemCount       int    `json:"itemCount"`
}

// ArchiveItem is the serialised form of an inventory item. Dates are kept as
// text so a malformed date fails only the item that carries it.
type ArchiveItem struct {
	ID                int64               `json:"id"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	PurchasePrice     decimal.Decimal     `json:"purchasePrice"`
	SellingPrice      decimal.NullDecimal `json:"sellingPrice"`
	PurchaseDate      string              `json:"purchaseDate"`
	ScheduledPostDate *string             `json:"scheduledPostDate"`
	PostedDate        *string             `json:"postedDate"`
	SoldDate          *string             `json:"soldDate"`
	ImageFileName     *string             `json:"imageFileName"`
	PurchaseLocation  string              `json:"purchaseLocation"`
	Category          string              `json:"category"`
	Notes             string              `json:"notes"`
	CreatedAt         int64               `json:"createdAt"`
	UpdatedAt         int64               `json:"updatedAt"`
}

// Document is the content of inventory.json.
type Document struct {
	Manifest Manifest      `json:"manifest"`
	Items    []ArchiveItem `json:"items"`
}

// NewManifest returns a manifest for itemCount items created at now.
func NewManifest(producerVersion string, now time.Time, itemCount int) Manifest {
	return Manifest{
		FormatVersion:   CurrentFormatVersion,
		ProducerVersion: producerVersion,
		CreatedAt:       now.Format(manifestTimeLayout),
		ItemCount:       itemCount,
	}
}

// EncodeDocument writes doc as indented JSON.
func EncodeDocument(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding %s: %w", ManifestEntry, err)
	}
	return nil
}

// DecodeDocument reads inventory.json. Unknown fields are ignored so that
// archives from newer producers with the same format version still load.
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ManifestEntry, err)
	}
	return &doc, nil
}

// FromItem projects an inventory item into its archive form. imageFileName
// is the bare name of the item's image entry, or nil.
func FromItem(item *model.Item, imageFileName *string) ArchiveItem {
	return ArchiveItem{
		ID:                item.ID,
		Title:             item.Title,
		Description:       item.Description,
		PurchasePrice:     item.PurchasePrice,
		SellingPrice:      item.SellingPrice,
		PurchaseDate:      item.PurchaseDate.String(),
		ScheduledPostDate: model.DateString(item.ScheduledPostDate),
		PostedDate:        model.DateString(item.PostedDate),
		SoldDate:          model.DateString(item.SoldDate),
		ImageFileName:     imageFileName,
		PurchaseLocation:  item.PurchaseLocation,
		Category:          item.Category,
		Notes:             item.Notes,
		CreatedAt:         item.CreatedAt.UnixMilli(),
		UpdatedAt:         item.UpdatedAt.UnixMilli(),
	}
}

// ToItem converts the archive form back into an inventory item with the
// given image path. The returned item has ID 0.
func (a *ArchiveItem) ToItem(imagePath *string) (*model.Item, error) {
	purchaseDate, err := model.ParseDate(a.PurchaseDate)
	if err != nil {
		return nil, fmt.Errorf("purchase date: %w", err)
	}
	scheduled, err := model.ParseDatePtr(a.ScheduledPostDate)
	if err != nil {
		return nil, fmt.Errorf("scheduled post date: %w", err)
	}
	posted, err := model.ParseDatePtr(a.PostedDate)
	if err != nil {
		return nil, fmt.Errorf("posted date: %w", err)
	}
	sold, err := model.ParseDatePtr(a.SoldDate)
	if err != nil {
		return nil, fmt.Errorf("sold date: %w", err)
	}

	return &model.Item{
		Title:             a.Title,
		Description:       a.Description,
		PurchasePrice:     a.PurchasePrice,
		SellingPrice:      a.SellingPrice,
		PurchaseDate:      purchaseDate,
		ScheduledPostDate: scheduled,
		PostedDate:        posted,
		SoldDate:          sold,
		ImagePath:         imagePath,
		PurchaseLocation:  a.PurchaseLocation,
		Category:          a.Category,
		Notes:             a.Notes,
		CreatedAt:         time.UnixMilli(a.CreatedAt),
		UpdatedAt:         time.UnixMilli(a.UpdatedAt),
	}, nil
}

// imageEntryName returns the archive entry name for an image file name.
func imageEntryName(fileName string) string {
	return ImagePrefix + fileName
}
