package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/assetly/assetly/internal/model"
)

// CreateItem creates a new item with the full quantity available.
func CreateItem(ctx context.Context, db DBTX, ownerID int64, name string, totalQuantity int) (*model.Item, error) {
	if strings.TrimSpace(name) == "" {
		return nil, model.Invalid("item name required")
	}
	if totalQuantity < 0 {
		return nil, model.Invalid("total quantity must be non-negative")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO items (owner_id, name, total_quantity, available_quantity)
		 VALUES (?, ?, ?, ?)`,
		ownerID, name, totalQuantity, totalQuantity,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, model.Duplicate("item %q already exists for this owner", name)
		}
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, or nil if missing.
func GetItem(ctx context.Context, db DBTX, id int64) (*model.Item, error) {
	item := &model.Item{}
	var imageMime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, total_quantity, available_quantity,
		        issued_quantity, project_quantity, image_mime, created_at, updated_at
		 FROM items WHERE id = ?`, id,
	).Scan(&item.ID, &item.OwnerID, &item.Name, &item.TotalQuantity, &item.AvailableQuantity,
		&item.IssuedQuantity, &item.ProjectQuantity, &imageMime, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	item.ImageMime = imageMime.String
	return item, nil
}

// ListItems returns all items with their owner names.
func ListItems(ctx context.Context, db DBTX) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT i.id, i.owner_id, i.name, i.total_quantity, i.available_quantity,
		        i.issued_quantity, i.project_quantity, i.image_mime, i.created_at, i.updated_at,
		        u.name AS owner_name
		 FROM items i
		 JOIN users u ON u.id = i.owner_id
		 ORDER BY i.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows, true)
}

// ListItemsByOwner returns all items owned by the given user.
func ListItemsByOwner(ctx context.Context, db DBTX, ownerID int64) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, owner_id, name, total_quantity, available_quantity,
		        issued_quantity, project_quantity, image_mime, created_at, updated_at
		 FROM items WHERE owner_id = ? ORDER BY name`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items by owner: %w", err)
	}
	defer rows.Close()

	return scanItems(rows, false)
}

func scanItems(rows *sql.Rows, withOwner bool) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		var item model.Item
		var imageMime sql.NullString
		dest := []any{&item.ID, &item.OwnerID, &item.Name, &item.TotalQuantity, &item.AvailableQuantity,
			&item.IssuedQuantity, &item.ProjectQuantity, &imageMime, &item.CreatedAt, &item.UpdatedAt}
		if withOwner {
			dest = append(dest, &item.OwnerName)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		item.ImageMime = imageMime.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateItem renames an item and/or shifts its stock level. The delta is
// applied to both the total and the available counter, so stock that is
// issued or committed to a project is never touched.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, newName string, quantityDelta int) (*model.Item, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := GetItem(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NotFound("item not found")
	}

	name := item.Name
	if strings.TrimSpace(newName) != "" {
		name = newName
	} else if quantityDelta == 0 {
		return nil, model.Invalid("nothing to update")
	}

	newAvailable := item.AvailableQuantity + quantityDelta
	newTotal := item.TotalQuantity + quantityDelta
	if newAvailable < 0 {
		return nil, model.Invalid("insufficient available quantity")
	}
	if newTotal < newAvailable {
		return nil, model.Invalid("total quantity cannot be less than available quantity")
	}
	if newTotal <= 0 {
		return nil, model.Invalid("total quantity cannot be negative or zero")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE items SET name = ?, total_quantity = ?, available_quantity = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		name, newTotal, newAvailable, id,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, model.Duplicate("item %q already exists for this owner", name)
		}
		return nil, fmt.Errorf("updating item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item update: %w", err)
	}

	return GetItem(ctx, db, id)
}

// DeleteItem removes an item permanently. Deletion is refused while any
// quantity is issued or committed to a project.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := GetItem(ctx, tx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return model.NotFound("item not found")
	}
	if item.AvailableQuantity != item.TotalQuantity {
		return model.Conflict("cannot delete item: some quantity is issued or in project")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item deletion: %w", err)
	}
	return nil
}

// Reserve moves quantity units from available to the target counter
// (issued or project). The guard in the WHERE clause makes the check and
// the move a single atomic statement.
func Reserve(ctx context.Context, db DBTX, itemID int64, quantity int, target string) error {
	if quantity < 1 {
		return model.Invalid("quantity must be at least 1")
	}

	var query string
	switch target {
	case model.CounterIssued:
		query = `UPDATE items
		         SET available_quantity = available_quantity - ?,
		             issued_quantity = issued_quantity + ?,
		             updated_at = CURRENT_TIMESTAMP
		         WHERE id = ? AND available_quantity >= ?`
	case model.CounterProject:
		query = `UPDATE items
		         SET available_quantity = available_quantity - ?,
		             project_quantity = project_quantity + ?,
		             updated_at = CURRENT_TIMESTAMP
		         WHERE id = ? AND available_quantity >= ?`
	default:
		return model.Inconsistent("unknown reserve target %q", target)
	}

	result, err := db.ExecContext(ctx, query, quantity, quantity, itemID, quantity)
	if err != nil {
		return fmt.Errorf("reserving stock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserving stock: %w", err)
	}
	if affected == 0 {
		return model.InsufficientStock("insufficient available quantity")
	}
	return nil
}

// Release moves quantity units from the source counter (issued or project)
// back to available. Driving the source counter below zero means a caller
// released stock it never reserved; that is reported, never clamped.
func Release(ctx context.Context, db DBTX, itemID int64, quantity int, source string) error {
	if quantity < 1 {
		return model.Invalid("quantity must be at least 1")
	}

	var query string
	switch source {
	case model.CounterIssued:
		query = `UPDATE items
		         SET available_quantity = available_quantity + ?,
		             issued_quantity = issued_quantity - ?,
		             updated_at = CURRENT_TIMESTAMP
		         WHERE id = ? AND issued_quantity >= ?`
	case model.CounterProject:
		query = `UPDATE items
		         SET available_quantity = available_quantity + ?,
		             project_quantity = project_quantity - ?,
		             updated_at = CURRENT_TIMESTAMP
		         WHERE id = ? AND project_quantity >= ?`
	default:
		return model.Inconsistent("unknown release source %q", source)
	}

	result, err := db.ExecContext(ctx, query, quantity, quantity, itemID, quantity)
	if err != nil {
		return fmt.Errorf("releasing stock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("releasing stock: %w", err)
	}
	if affected == 0 {
		return model.Inconsistent("release of %d from %s would drive item %d negative", quantity, source, itemID)
	}
	return nil
}

// SetItemImage sets an item's image data.
func SetItemImage(ctx context.Context, db DBTX, id int64, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type.
func GetItemImage(ctx context.Context, db DBTX, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}
