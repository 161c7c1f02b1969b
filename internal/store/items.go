package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/dustgatherer/internal/model"
)

const itemColumns = `id, title, description, purchase_price, selling_price, purchase_date,
	scheduled_post_date, posted_date, sold_date, image_path, purchase_location,
	category, notes, created_at, updated_at`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// CreateItem inserts an item and returns its id. A non-zero item.ID is used
// as the primary key, otherwise the database assigns one. Zero timestamps
// are set to the current time.
func CreateItem(ctx context.Context, db *sql.DB, item *model.Item) (int64, error) {
	return insertItem(ctx, db, item)
}

// CreateItems inserts all items in a single transaction and returns the
// assigned ids in input order.
func CreateItems(ctx context.Context, db *sql.DB, items []model.Item) ([]int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(items))
	for i := range items {
		id, err := insertItem(ctx, tx, &items[i])
		if err != nil {
			return nil, fmt.Errorf("inserting item %d of %d: %w", i+1, len(items), err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing items: %w", err)
	}
	return ids, nil
}

func insertItem(ctx context.Context, ex execer, item *model.Item) (int64, error) {
	now := time.Now()
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := item.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	result, err := ex.ExecContext(ctx,
		`INSERT INTO inventory_items (`+itemColumns+`)
		 VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Description, item.PurchasePrice, item.SellingPrice,
		item.PurchaseDate, model.DateString(item.ScheduledPostDate),
		model.DateString(item.PostedDate), model.DateString(item.SoldDate),
		item.ImagePath, item.PurchaseLocation, item.Category, item.Notes,
		createdAt.UnixMilli(), updatedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting item id: %w", err)
	}
	return id, nil
}

// GetItem returns an item by ID, or nil if it does not exist.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`, id,
	)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns every item, newest first.
func ListItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	return queryItems(ctx, db, "listing items",
		`SELECT `+itemColumns+` FROM inventory_items ORDER BY created_at DESC, id DESC`,
	)
}

// ListItemsByStatus returns items in the given lifecycle stage.
func ListItemsByStatus(ctx context.Context, db *sql.DB, status string) ([]model.Item, error) {
	switch status {
	case "":
		return ListItems(ctx, db)
	case model.ItemStatusInventory:
		return ListUnscheduled(ctx, db)
	case model.ItemStatusScheduled:
		return queryItems(ctx, db, "listing scheduled items",
			`SELECT `+itemColumns+` FROM inventory_items
			 WHERE scheduled_post_date IS NOT NULL AND posted_date IS NULL AND sold_date IS NULL
			 ORDER BY scheduled_post_date`,
		)
	case model.ItemStatusPosted:
		return ListPosted(ctx, db)
	case model.ItemStatusSold:
		return ListSold(ctx, db)
	default:
		return nil, fmt.Errorf("unknown status %q", status)
	}
}

// ListScheduledBetween returns items scheduled for posting within [from, to].
func ListScheduledBetween(ctx context.Context, db *sql.DB, from, to model.Date) ([]model.Item, error) {
	return queryItems(ctx, db, "listing scheduled items",
		`SELECT `+itemColumns+` FROM inventory_items
		 WHERE scheduled_post_date BETWEEN ? AND ?
		 ORDER BY scheduled_post_date, title`,
		from, to,
	)
}

// ListUnscheduled returns items still in stock with no posting date planned.
func ListUnscheduled(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	return queryItems(ctx, db, "listing unscheduled items",
		`SELECT `+itemColumns+` FROM inventory_items
		 WHERE scheduled_post_date IS NULL AND posted_date IS NULL AND sold_date IS NULL
		 ORDER BY purchase_date DESC`,
	)
}

// ListPosted returns listed items that have not sold yet.
func ListPosted(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	return queryItems(ctx, db, "listing posted items",
		`SELECT `+itemColumns+` FROM inventory_items
		 WHERE posted_date IS NOT NULL AND sold_date IS NULL
		 ORDER BY posted_date DESC`,
	)
}

// ListSold returns sold items, most recent sale first.
func ListSold(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	return queryItems(ctx, db, "listing sold items",
		`SELECT `+itemColumns+` FROM inventory_items
		 WHERE sold_date IS NOT NULL
		 ORDER BY sold_date DESC`,
	)
}

// SearchItems returns items whose title or description contains query.
func SearchItems(ctx context.Context, db *sql.DB, query string) ([]model.Item, error) {
	pattern := "%" + escapeLike(query) + "%"
	return queryItems(ctx, db, "searching items",
		`SELECT `+itemColumns+` FROM inventory_items
		 WHERE title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC`,
		pattern, pattern,
	)
}

// UpdateItem overwrites every field of the item with the given id and bumps
// updated_at.
func UpdateItem(ctx context.Context, db *sql.DB, item *model.Item) error {
	result, err := db.ExecContext(ctx,
		`UPDATE inventory_items SET title = ?, description = ?, purchase_price = ?,
		        selling_price = ?, purchase_date = ?, scheduled_post_date = ?,
		        posted_date = ?, sold_date = ?, image_path = ?, purchase_location = ?,
		        category = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		item.Title, item.Description, item.PurchasePrice, item.SellingPrice,
		item.PurchaseDate, model.DateString(item.ScheduledPostDate),
		model.DateString(item.PostedDate), model.DateString(item.SoldDate),
		item.ImagePath, item.PurchaseLocation, item.Category, item.Notes,
		time.Now().UnixMilli(), item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("updating item: item %d not found", item.ID)
	}
	return nil
}

// SetItemImagePath points an item at a stored image, or clears it when path
// is nil.
func SetItemImagePath(ctx context.Context, db *sql.DB, id int64, path *string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE inventory_items SET image_path = ?, updated_at = ? WHERE id = ?`,
		path, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// ImageInUse reports whether any item still references the stored image.
func ImageInUse(ctx context.Context, db *sql.DB, path string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inventory_items WHERE image_path = ?`, path,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking image references: %w", err)
	}
	return n > 0, nil
}

// DeleteItem removes an item.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// GetStats computes inventory totals. Sums are done in Go so that prices
// never pass through floating point.
func GetStats(ctx context.Context, db *sql.DB) (*model.Stats, error) {
	items, err := ListItems(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}

	stats := &model.Stats{}
	for i := range items {
		item := &items[i]
		stats.TotalItems++
		stats.TotalSpent = stats.TotalSpent.Add(item.PurchasePrice)
		switch item.Status() {
		case model.ItemStatusSold:
			stats.SoldItems++
			if item.SellingPrice.Valid {
				stats.TotalRevenue = stats.TotalRevenue.Add(item.SellingPrice.Decimal)
			}
			if profit, ok := item.Profit(); ok {
				stats.TotalProfit = stats.TotalProfit.Add(profit)
			}
		case model.ItemStatusPosted:
			stats.ActiveListings++
		}
	}
	return stats, nil
}

func queryItems(ctx context.Context, db *sql.DB, op, query string, args ...any) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func scanItem(row rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var scheduled, posted, sold, imagePath sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(&item.ID, &item.Title, &item.Description, &item.PurchasePrice,
		&item.SellingPrice, &item.PurchaseDate, &scheduled, &posted, &sold, &imagePath,
		&item.PurchaseLocation, &item.Category, &item.Notes, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if item.ScheduledPostDate, err = nullDate(scheduled); err != nil {
		return nil, err
	}
	if item.PostedDate, err = nullDate(posted); err != nil {
		return nil, err
	}
	if item.SoldDate, err = nullDate(sold); err != nil {
		return nil, err
	}
	if imagePath.Valid {
		item.ImagePath = &imagePath.String
	}
	item.CreatedAt = time.UnixMilli(createdAt)
	item.UpdatedAt = time.UnixMilli(updatedAt)
	return item, nil
}

func nullDate(s sql.NullString) (*model.Date, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := model.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ItemStore exposes the item functions as methods over a single database
// handle so it can be passed where a record store is expected.
type ItemStore struct {
	DB *sql.DB
}

// NewItemStore returns an ItemStore backed by db.
func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{DB: db}
}

// ListItems returns a snapshot of every item.
func (s *ItemStore) ListItems(ctx context.Context) ([]model.Item, error) {
	return ListItems(ctx, s.DB)
}

// GetItem returns the item with the given id, or nil.
func (s *ItemStore) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	return GetItem(ctx, s.DB, id)
}

// CreateItem inserts a single item.
func (s *ItemStore) CreateItem(ctx context.Context, item *model.Item) (int64, error) {
	return CreateItem(ctx, s.DB, item)
}

// CreateItems inserts items in one transaction.
func (s *ItemStore) CreateItems(ctx context.Context, items []model.Item) ([]int64, error) {
	return CreateItems(ctx, s.DB, items)
}

// UpdateItem overwrites an existing item.
func (s *ItemStore) UpdateItem(ctx context.Context, item *model.Item) error {
	return UpdateItem(ctx, s.DB, item)
}
