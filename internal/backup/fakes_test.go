package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/dustgatherer/internal/model"
)

// memRecords is an in-memory RecordStore.
type memRecords struct {
	mu      sync.Mutex
	items   map[int64]model.Item
	nextID  int64
	failGet map[int64]error

	updates     int
	bulkInserts int
}

func newMemRecords() *memRecords {
	return &memRecords{items: make(map[int64]model.Item), nextID: 1, failGet: make(map[int64]error)}
}

func (m *memRecords) put(item model.Item) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item.ID == 0 {
		item.ID = m.nextID
	}
	if item.ID >= m.nextID {
		m.nextID = item.ID + 1
	}
	m.items[item.ID] = item
	return item.ID
}

func (m *memRecords) ListItems(ctx context.Context) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Item, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memRecords) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failGet[id]; err != nil {
		return nil, err
	}
	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *memRecords) CreateItems(ctx context.Context, items []model.Item) ([]int64, error) {
	m.mu.Lock()
	m.bulkInserts++
	m.mu.Unlock()
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, m.put(item))
	}
	return ids, nil
}

func (m *memRecords) UpdateItem(ctx context.Context, item *model.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return fmt.Errorf("item %d not found", item.ID)
	}
	m.items[item.ID] = *item
	m.updates++
	return nil
}

func (m *memRecords) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// memAssets is an in-memory AssetStore keyed by path.
type memAssets struct {
	mu    sync.Mutex
	blobs map[string][]byte
	seq   int
}

func newMemAssets() *memAssets {
	return &memAssets{blobs: make(map[string][]byte)}
}

func (a *memAssets) add(path, data string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blobs[path] = []byte(data)
	return path
}

func (a *memAssets) Save(r io.Reader, ext string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	if ext == "" {
		ext = "jpg"
	}
	path := fmt.Sprintf("/mem/images/item_%03d.%s", a.seq, ext)
	a.blobs[path] = data
	return path, nil
}

func (a *memAssets) Open(path string) (io.ReadCloser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.blobs[path]
	if !ok {
		return nil, fmt.Errorf("no blob at %s", path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (a *memAssets) Exists(path string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.blobs[path]
	return ok
}

func (a *memAssets) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.blobs)
}

// progressLog records reported fractions.
type progressLog struct {
	mu     sync.Mutex
	values []float64
}

func (p *progressLog) report(f float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, f)
}

func (p *progressLog) requireMonotonicToOne(t *testing.T) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.values)
	for i := 1; i < len(p.values); i++ {
		require.GreaterOrEqual(t, p.values[i], p.values[i-1], "progress went backwards: %v", p.values)
	}
	for _, v := range p.values {
		require.True(t, v >= 0 && v <= 1, "progress out of range: %v", p.values)
	}
	require.Equal(t, 1.0, p.values[len(p.values)-1])
}

func sampleItem(id int64, title string) model.Item {
	posted := model.NewDate(2024, time.April, 2)
	return model.Item{
		ID:               id,
		Title:            title,
		Description:      title + " description",
		PurchasePrice:    decimal.RequireFromString("4.99"),
		SellingPrice:     decimal.NewNullDecimal(decimal.RequireFromString("19.5")),
		PurchaseDate:     model.NewDate(2024, time.March, 1),
		PostedDate:       &posted,
		PurchaseLocation: "Flea market",
		Category:         "Decor",
		Notes:            "chipped base",
		CreatedAt:        time.UnixMilli(1709280000000 + id),
		UpdatedAt:        time.UnixMilli(1709366400000 + id),
	}
}

func strPtr(s string) *string { return &s }

// archiveEntry is a raw entry for hand-built archives.
type archiveEntry struct {
	name string
	data string
}

// buildArchive writes entries into a zip in the given order.
func buildArchive(t *testing.T, entries ...archiveEntry) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = io.WriteString(w, e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

// manifestJSON encodes a document for hand-built archives.
func manifestJSON(t *testing.T, version int, declared int, items ...ArchiveItem) string {
	t.Helper()
	doc := &Document{
		Manifest: Manifest{FormatVersion: version, ProducerVersion: "test", CreatedAt: "2024-05-01T10:00:00", ItemCount: declared},
		Items:    items,
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeDocument(&buf, doc))
	return buf.String()
}

// exportArchive exports items from records/assets into memory.
func exportArchive(t *testing.T, records *memRecords, assets *memAssets) (*bytes.Reader, *progressLog) {
	t.Helper()
	items, err := records.ListItems(context.Background())
	require.NoError(t, err)

	w := &Writer{Assets: assets, ProducerVersion: "1.0.0"}
	progress := &progressLog{}
	var buf bytes.Buffer
	require.NoError(t, w.Write(context.Background(), items, StoredImages(assets), &buf, progress.report))
	return bytes.NewReader(buf.Bytes()), progress
}
