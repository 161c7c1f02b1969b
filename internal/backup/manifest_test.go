package backup

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/dustgatherer/internal/model"
)

func TestNewManifest(t *testing.T) {
	now := time.Date(2024, time.May, 1, 9, 30, 15, 0, time.Local)
	m := NewManifest("2.1.0", now, 7)

	assert.Equal(t, CurrentFormatVersion, m.FormatVersion)
	assert.Equal(t, "2.1.0", m.ProducerVersion)
	assert.Equal(t, "2024-05-01T09:30:15", m.CreatedAt)
	assert.Equal(t, 7, m.ItemCount)
}

func TestArchiveItemRoundTrip(t *testing.T) {
	item := sampleItem(3, "Brass lamp")
	sold := model.NewDate(2024, time.April, 20)
	item.SoldDate = &sold

	a := FromItem(&item, strPtr("lamp.jpg"))
	assert.Equal(t, int64(3), a.ID)
	assert.Equal(t, "2024-03-01", a.PurchaseDate)
	require.NotNil(t, a.SoldDate)
	assert.Equal(t, "2024-04-20", *a.SoldDate)
	assert.Nil(t, a.ScheduledPostDate)
	assert.Equal(t, item.CreatedAt.UnixMilli(), a.CreatedAt)

	back, err := a.ToItem(strPtr("/data/item_x.jpg"))
	require.NoError(t, err)
	assert.Zero(t, back.ID)
	assert.Equal(t, item.Title, back.Title)
	assert.True(t, item.PurchasePrice.Equal(back.PurchasePrice))
	assert.True(t, back.SellingPrice.Valid)
	assert.True(t, item.SellingPrice.Decimal.Equal(back.SellingPrice.Decimal))
	assert.Equal(t, item.PurchaseDate, back.PurchaseDate)
	assert.Equal(t, item.PostedDate, back.PostedDate)
	assert.Equal(t, item.SoldDate, back.SoldDate)
	assert.Nil(t, back.ScheduledPostDate)
	assert.Equal(t, item.CreatedAt.UnixMilli(), back.CreatedAt.UnixMilli())
	assert.Equal(t, item.UpdatedAt.UnixMilli(), back.UpdatedAt.UnixMilli())
	require.NotNil(t, back.ImagePath)
	assert.Equal(t, "/data/item_x.jpg", *back.ImagePath)
	assert.Equal(t, model.ItemStatusSold, back.Status())
}

func TestToItemBadDate(t *testing.T) {
	a := ArchiveItem{Title: "x", PurchaseDate: "2024-13-01"}
	_, err := a.ToItem(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purchase date")

	a = ArchiveItem{Title: "x", PurchaseDate: "2024-01-01", SoldDate: strPtr("yesterday")}
	_, err = a.ToItem(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sold date")
}

func TestDocumentEncoding(t *testing.T) {
	item := sampleItem(1, "Vase")
	doc := &Document{
		Manifest: NewManifest("1.0.0", time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local), 1),
		Items:    []ArchiveItem{FromItem(&item, nil)},
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeDocument(&buf, doc))

	out := buf.String()
	for _, key := range []string{`"version": 1`, `"appVersion"`, `"exportDate"`, `"itemCount": 1`,
		`"purchasePrice"`, `"imageFileName": null`, `"purchaseDate": "2024-03-01"`} {
		assert.Contains(t, out, key)
	}

	back, err := DecodeDocument(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc.Manifest, back.Manifest)
	require.Len(t, back.Items, 1)
	assert.Equal(t, "Vase", back.Items[0].Title)
}

func TestDecodeDocumentLenient(t *testing.T) {
	// Numeric prices, unknown keys and a missing selling price all load.
	src := `{
		"manifest": {"version": 1, "appVersion": "0.9", "exportDate": "2023-12-31T23:59:59", "itemCount": 1, "device": "phone"},
		"items": [{
			"id": 9, "title": "Clock", "purchasePrice": 12.5, "purchaseDate": "2023-11-02",
			"scheduledPostDate": null, "extra": true, "createdAt": 1, "updatedAt": 2
		}]
	}`
	doc, err := DecodeDocument(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, doc.Items, 1)

	a := doc.Items[0]
	assert.Equal(t, "12.5", a.PurchasePrice.String())
	assert.False(t, a.SellingPrice.Valid)
	assert.Nil(t, a.ImageFileName)

	item, err := a.ToItem(nil)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusInventory, item.Status())
}

func TestDecodeDocumentGarbage(t *testing.T) {
	_, err := DecodeDocument(strings.NewReader("not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ManifestEntry)
}
