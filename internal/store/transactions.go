package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/assetly/assetly/internal/model"
)

// CreateTransaction inserts a new transaction together with its first
// history entry. The caller supplies the initial status; quantity, item and
// parties are immutable afterwards.
func CreateTransaction(ctx context.Context, db DBTX, txn *model.Transaction, action, description string) (int64, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO transactions (item_id, owner_id, issuer_id, status, reason, return_date, quantity)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.ItemID, txn.OwnerID, txn.IssuerID, string(txn.Status), txn.Reason, txn.ReturnDate, txn.Quantity,
	)
	if err != nil {
		return 0, fmt.Errorf("creating transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting transaction id: %w", err)
	}

	if err := AppendHistory(ctx, db, id, action, description); err != nil {
		return 0, err
	}
	return id, nil
}

// GetTransaction returns a transaction with its full history, or nil if
// missing.
func GetTransaction(ctx context.Context, db DBTX, id int64) (*model.Transaction, error) {
	txn := &model.Transaction{}
	err := db.QueryRowContext(ctx,
		`SELECT id, item_id, owner_id, issuer_id, status, reason, return_date,
		        quantity, created_at, updated_at
		 FROM transactions WHERE id = ?`, id,
	).Scan(&txn.ID, &txn.ItemID, &txn.OwnerID, &txn.IssuerID, &txn.Status, &txn.Reason,
		&txn.ReturnDate, &txn.Quantity, &txn.CreatedAt, &txn.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	history, err := GetHistory(ctx, db, id)
	if err != nil {
		return nil, err
	}
	txn.History = history
	return txn, nil
}

// GetHistory returns a transaction's history entries in append order.
func GetHistory(ctx context.Context, db DBTX, transactionID int64) ([]model.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT action, description, created_at
		 FROM transaction_history WHERE transaction_id = ? ORDER BY id`, transactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("getting transaction history: %w", err)
	}
	defer rows.Close()

	var history []model.HistoryEntry
	for rows.Next() {
		var h model.HistoryEntry
		if err := rows.Scan(&h.Action, &h.Description, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// AppendHistory adds one entry to a transaction's audit trail.
func AppendHistory(ctx context.Context, db DBTX, transactionID int64, action, description string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO transaction_history (transaction_id, action, description) VALUES (?, ?, ?)`,
		transactionID, action, description,
	)
	if err != nil {
		return fmt.Errorf("appending transaction history: %w", err)
	}
	return nil
}

// SetStatus advances a transaction's status.
func SetStatus(ctx context.Context, db DBTX, transactionID int64, status model.Status) error {
	_, err := db.ExecContext(ctx,
		`UPDATE transactions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), transactionID,
	)
	if err != nil {
		return fmt.Errorf("setting transaction status: %w", err)
	}
	return nil
}

// SetReturnDate replaces a transaction's return date.
func SetReturnDate(ctx context.Context, db DBTX, transactionID int64, returnDate time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE transactions SET return_date = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		returnDate, transactionID,
	)
	if err != nil {
		return fmt.Errorf("setting return date: %w", err)
	}
	return nil
}

// ListUserTransactions returns all transactions where the user is owner or
// issuer, most recently updated first, enriched with item and party names.
// If statuses is non-empty, only those statuses are included.
func ListUserTransactions(ctx context.Context, db DBTX, userID int64, statuses []model.Status) ([]model.Transaction, error) {
	query := `SELECT t.id, t.item_id, t.owner_id, t.issuer_id, t.status, t.reason,
	                 t.return_date, t.quantity, t.created_at, t.updated_at,
	                 COALESCE(i.name, 'Unknown Item') AS item_name,
	                 COALESCE(o.name, 'Unknown') AS owner_name,
	                 COALESCE(u.name, 'Unknown') AS issuer_name
	          FROM transactions t
	          LEFT JOIN items i ON i.id = t.item_id
	          LEFT JOIN users o ON o.id = t.owner_id
	          LEFT JOIN users u ON u.id = t.issuer_id
	          WHERE (t.owner_id = ? OR t.issuer_id = ?)`
	args := []any{userID, userID}

	if len(statuses) > 0 {
		query += ` AND t.status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}

	query += ` ORDER BY t.updated_at DESC, t.id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing user transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListItemTransactions returns the active (non-terminal) transactions
// against an item, enriched with issuer names.
func ListItemTransactions(ctx context.Context, db DBTX, itemID int64) ([]model.Transaction, error) {
	query := `SELECT t.id, t.item_id, t.owner_id, t.issuer_id, t.status, t.reason,
	                 t.return_date, t.quantity, t.created_at, t.updated_at,
	                 COALESCE(i.name, 'Unknown Item') AS item_name,
	                 COALESCE(o.name, 'Unknown') AS owner_name,
	                 COALESCE(u.name, 'Unknown') AS issuer_name
	          FROM transactions t
	          LEFT JOIN items i ON i.id = t.item_id
	          LEFT JOIN users o ON o.id = t.owner_id
	          LEFT JOIN users u ON u.id = t.issuer_id
	          WHERE t.item_id = ? AND t.status IN (` + placeholders(len(model.ActiveStatuses)) + `)
	          ORDER BY t.updated_at DESC, t.id DESC`

	args := []any{itemID}
	for _, s := range model.ActiveStatuses {
		args = append(args, string(s))
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing item transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListOverdueCandidates returns the IDs of Issued transactions whose return
// date lies strictly before now. Already-Overdue records are excluded so the
// scanner never re-expires them. The date comparison happens here rather
// than in SQL to sidestep driver-dependent datetime text formats.
func ListOverdueCandidates(ctx context.Context, db DBTX, now time.Time) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, return_date FROM transactions
		 WHERE status = ? AND return_date IS NOT NULL`, string(model.StatusIssued),
	)
	if err != nil {
		return nil, fmt.Errorf("listing overdue candidates: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		var returnDate time.Time
		if err := rows.Scan(&id, &returnDate); err != nil {
			return nil, fmt.Errorf("scanning overdue candidate: %w", err)
		}
		if returnDate.Before(now) {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.ItemID, &t.OwnerID, &t.IssuerID, &t.Status, &t.Reason,
			&t.ReturnDate, &t.Quantity, &t.CreatedAt, &t.UpdatedAt,
			&t.ItemName, &t.OwnerName, &t.IssuerName); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
