package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/dustgatherer/internal/db"
	"github.com/erazemk/dustgatherer/internal/model"
)

func newItem(title string) *model.Item {
	return &model.Item{
		Title:         title,
		PurchasePrice: decimal.RequireFromString("12.50"),
		PurchaseDate:  model.NewDate(2024, time.March, 3),
	}
}

func datePtr(d model.Date) *model.Date { return &d }

func mustCreate(t *testing.T, ctx context.Context, database *sql.DB, item *model.Item) int64 {
	t.Helper()
	id, err := CreateItem(ctx, database, item)
	if err != nil {
		t.Fatalf("creating %q: %v", item.Title, err)
	}
	return id
}

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := newItem("Brass lamp")
	item.Description = "1950s desk lamp"
	item.SellingPrice = decimal.NewNullDecimal(decimal.RequireFromString("45.00"))
	item.ScheduledPostDate = datePtr(model.NewDate(2024, time.April, 1))
	path := "/data/images/item_a.jpg"
	item.ImagePath = &path

	id := mustCreate(t, ctx, database, item)
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	got, err := GetItem(ctx, database, id)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected item, got nil")
	}

	if got.Title != "Brass lamp" || got.Description != "1950s desk lamp" {
		t.Errorf("unexpected text fields: %q / %q", got.Title, got.Description)
	}
	if !got.PurchasePrice.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("purchase price = %s", got.PurchasePrice)
	}
	if !got.SellingPrice.Valid || got.SellingPrice.Decimal.String() != "45" {
		t.Errorf("selling price = %v", got.SellingPrice)
	}
	if got.PurchaseDate != model.NewDate(2024, time.March, 3) {
		t.Errorf("purchase date = %s", got.PurchaseDate)
	}
	if got.ScheduledPostDate == nil || got.ScheduledPostDate.String() != "2024-04-01" {
		t.Errorf("scheduled date = %v", got.ScheduledPostDate)
	}
	if got.PostedDate != nil {
		t.Errorf("expected no posted date, got %v", got.PostedDate)
	}
	if got.ImagePath == nil || *got.ImagePath != path {
		t.Errorf("image path = %v", got.ImagePath)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected created_at set")
	}
	if got.Status() != model.ItemStatusScheduled {
		t.Errorf("status = %q", got.Status())
	}
}

func TestGetItemMissing(t *testing.T) {
	database := db.NewTestDB(t)

	got, err := GetItem(context.Background(), database, 42)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing item, got %+v", got)
	}
}

func TestCreateItemExplicitID(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := newItem("Pinned")
	item.ID = 5
	if id := mustCreate(t, ctx, database, item); id != 5 {
		t.Fatalf("expected id 5, got %d", id)
	}

	// The next automatic id continues after the explicit one.
	if id := mustCreate(t, ctx, database, newItem("Next")); id != 6 {
		t.Fatalf("expected id 6, got %d", id)
	}
}

func TestCreateItemsPreservesTimestamps(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	created := time.UnixMilli(1700000000123)
	updated := time.UnixMilli(1700000999456)
	items := []model.Item{*newItem("One"), *newItem("Two"), *newItem("Three")}
	items[1].CreatedAt = created
	items[1].UpdatedAt = updated

	ids, err := CreateItems(ctx, database, items)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}

	got, err := GetItem(ctx, database, ids[1])
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Two" {
		t.Errorf("expected Two, got %q", got.Title)
	}
	if !created.Equal(got.CreatedAt) || !updated.Equal(got.UpdatedAt) {
		t.Errorf("timestamps not preserved: %v %v", got.CreatedAt, got.UpdatedAt)
	}

	all, err := ListItems(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 items, got %d", len(all))
	}
}

func TestCreateItemsRollsBackOnFailure(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	first := newItem("First")
	first.ID = 1
	dup := newItem("Duplicate")
	dup.ID = 1

	if _, err := CreateItems(ctx, database, []model.Item{*first, *dup}); err == nil {
		t.Fatal("expected error for duplicate id")
	}

	all, err := ListItems(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected rollback, got %d items", len(all))
	}
}

func TestUpdateItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	id := mustCreate(t, ctx, database, newItem("Old title"))

	item, err := GetItem(ctx, database, id)
	if err != nil {
		t.Fatal(err)
	}
	item.Title = "New title"
	item.SoldDate = datePtr(model.NewDate(2024, time.May, 9))
	item.SellingPrice = decimal.NewNullDecimal(decimal.RequireFromString("20"))
	if err := UpdateItem(ctx, database, item); err != nil {
		t.Fatal(err)
	}

	got, err := GetItem(ctx, database, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "New title" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Status() != model.ItemStatusSold {
		t.Errorf("status = %q", got.Status())
	}
	profit, ok := got.Profit()
	if !ok || profit.String() != "7.5" {
		t.Errorf("profit = %s (%v)", profit, ok)
	}
}

func TestUpdateItemMissing(t *testing.T) {
	database := db.NewTestDB(t)

	item := newItem("Ghost")
	item.ID = 99
	if err := UpdateItem(context.Background(), database, item); err == nil {
		t.Fatal("expected error updating missing item")
	}
}

func TestListItemsByStatus(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustCreate(t, ctx, database, newItem("Stock"))
	scheduled := newItem("Scheduled")
	scheduled.ScheduledPostDate = datePtr(model.NewDate(2024, time.June, 1))
	mustCreate(t, ctx, database, scheduled)
	posted := newItem("Posted")
	posted.PostedDate = datePtr(model.NewDate(2024, time.June, 2))
	mustCreate(t, ctx, database, posted)
	sold := newItem("Sold")
	sold.PostedDate = datePtr(model.NewDate(2024, time.June, 2))
	sold.SoldDate = datePtr(model.NewDate(2024, time.June, 5))
	mustCreate(t, ctx, database, sold)

	for status, want := range map[string]string{
		model.ItemStatusInventory: "Stock",
		model.ItemStatusScheduled: "Scheduled",
		model.ItemStatusPosted:    "Posted",
		model.ItemStatusSold:      "Sold",
	} {
		items, err := ListItemsByStatus(ctx, database, status)
		if err != nil {
			t.Fatalf("%s: %v", status, err)
		}
		if len(items) != 1 || items[0].Title != want {
			t.Errorf("%s: expected [%s], got %d item(s)", status, want, len(items))
		}
	}

	if _, err := ListItemsByStatus(ctx, database, "archived"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestListScheduledBetween(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	for day := 1; day <= 5; day++ {
		item := newItem("Day")
		item.ScheduledPostDate = datePtr(model.NewDate(2024, time.July, day))
		mustCreate(t, ctx, database, item)
	}

	items, err := ListScheduledBetween(ctx, database,
		model.NewDate(2024, time.July, 2), model.NewDate(2024, time.July, 4))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 3 {
		t.Errorf("expected 3 items, got %d", len(items))
	}
}

func TestSearchItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustCreate(t, ctx, database, newItem("Blue vase"))
	withDesc := newItem("Jug")
	withDesc.Description = "pale blue glaze"
	mustCreate(t, ctx, database, withDesc)
	mustCreate(t, ctx, database, newItem("100% wool scarf"))

	items, err := SearchItems(ctx, database, "blue")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Errorf("blue: expected 2 items, got %d", len(items))
	}

	items, err = SearchItems(ctx, database, "100%")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Errorf("100%%: expected 1 item, got %d", len(items))
	}
}

func TestDeleteItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	id := mustCreate(t, ctx, database, newItem("Delete me"))
	if err := DeleteItem(ctx, database, id); err != nil {
		t.Fatal(err)
	}

	got, err := GetItem(ctx, database, id)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected item deleted")
	}
}

func TestImageInUse(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	path := "/data/images/item_shared.jpg"
	a := newItem("Cup")
	a.ImagePath = &path
	b := newItem("Saucer")
	b.ImagePath = &path
	idA := mustCreate(t, ctx, database, a)
	idB := mustCreate(t, ctx, database, b)

	if err := SetItemImagePath(ctx, database, idA, nil); err != nil {
		t.Fatal(err)
	}
	inUse, err := ImageInUse(ctx, database, path)
	if err != nil {
		t.Fatal(err)
	}
	if !inUse {
		t.Fatal("expected image still referenced by second item")
	}

	if err := DeleteItem(ctx, database, idB); err != nil {
		t.Fatal(err)
	}
	inUse, err = ImageInUse(ctx, database, path)
	if err != nil {
		t.Fatal(err)
	}
	if inUse {
		t.Fatal("expected no references left")
	}
}

func TestGetStats(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustCreate(t, ctx, database, newItem("Stock"))
	posted := newItem("Posted")
	posted.PostedDate = datePtr(model.NewDate(2024, time.June, 2))
	mustCreate(t, ctx, database, posted)
	sold := newItem("Sold")
	sold.SoldDate = datePtr(model.NewDate(2024, time.June, 5))
	sold.SellingPrice = decimal.NewNullDecimal(decimal.RequireFromString("30.10"))
	mustCreate(t, ctx, database, sold)

	stats, err := GetStats(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalItems != 3 || stats.SoldItems != 1 || stats.ActiveListings != 1 {
		t.Errorf("counts = %d/%d/%d", stats.TotalItems, stats.SoldItems, stats.ActiveListings)
	}
	if stats.TotalSpent.String() != "37.5" {
		t.Errorf("total spent = %s", stats.TotalSpent)
	}
	if stats.TotalRevenue.String() != "30.1" {
		t.Errorf("total revenue = %s", stats.TotalRevenue)
	}
	if stats.TotalProfit.String() != "17.6" {
		t.Errorf("total profit = %s", stats.TotalProfit)
	}
}

func TestItemStoreSatisfiesRecordStore(t *testing.T) {
	database := db.NewTestDB(t)
	s := NewItemStore(database)
	ctx := context.Background()

	id, err := s.CreateItem(ctx, newItem("Via store"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetItem(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected item")
	}

	got.Notes = "updated"
	if err := s.UpdateItem(ctx, got); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListItems(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Notes != "updated" {
		t.Fatalf("unexpected items: %+v", all)
	}
}

func TestRecordAndListJobs(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	start := time.Now().Add(-time.Second)
	_, err := RecordJob(ctx, database, &model.BackupJob{
		Kind: model.JobKindExport, Status: model.JobStatusSuccess, TotalItems: 3,
		StartedAt: start, FinishedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = RecordJob(ctx, database, &model.BackupJob{
		Kind: model.JobKindImport, Strategy: "skip", Status: model.JobStatusSuccess,
		TotalItems: 3, Skipped: 3, StartedAt: start, FinishedAt: time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	jobs, err := ListJobs(ctx, database, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Kind != model.JobKindImport || jobs[0].Strategy != "skip" || jobs[0].Skipped != 3 {
		t.Errorf("unexpected newest job: %+v", jobs[0])
	}
	if jobs[1].Strategy != "" {
		t.Errorf("expected no strategy on export job, got %q", jobs[1].Strategy)
	}
}
