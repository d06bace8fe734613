package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// transactions.item_id is deliberately not a foreign key: an item may be
// deleted once nothing is issued or in a project, but its terminal
// transactions stay behind as audit records.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id             INTEGER PRIMARY KEY,
    name           TEXT NOT NULL,
    email          TEXT NOT NULL UNIQUE,
    contact_number TEXT NOT NULL DEFAULT '',
    password_hash  TEXT NOT NULL,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
    id                 INTEGER PRIMARY KEY,
    owner_id           INTEGER NOT NULL REFERENCES users(id),
    name               TEXT NOT NULL,
    total_quantity     INTEGER NOT NULL CHECK (total_quantity >= 0),
    available_quantity INTEGER NOT NULL CHECK (available_quantity >= 0),
    issued_quantity    INTEGER NOT NULL DEFAULT 0 CHECK (issued_quantity >= 0),
    project_quantity   INTEGER NOT NULL DEFAULT 0 CHECK (project_quantity >= 0),
    image              BLOB,
    image_mime         TEXT,
    created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (owner_id, name),
    CHECK (available_quantity + issued_quantity + project_quantity = total_quantity)
);

CREATE TABLE IF NOT EXISTS transactions (
    id          INTEGER PRIMARY KEY,
    item_id     INTEGER NOT NULL,
    owner_id    INTEGER NOT NULL REFERENCES users(id),
    issuer_id   INTEGER NOT NULL REFERENCES users(id),
    status      TEXT NOT NULL CHECK (status IN (
                    'Requested', 'Approved', 'Issued', 'Assigned to Project',
                    'Overdue', 'Returned', 'Rejected')),
    reason      TEXT NOT NULL DEFAULT '',
    return_date DATETIME,
    quantity    INTEGER NOT NULL CHECK (quantity >= 1),
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transactions_owner ON transactions(owner_id);
CREATE INDEX IF NOT EXISTS idx_transactions_issuer ON transactions(issuer_id);
CREATE INDEX IF NOT EXISTS idx_transactions_item ON transactions(item_id);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);

CREATE TABLE IF NOT EXISTS transaction_history (
    id             INTEGER PRIMARY KEY,
    transaction_id INTEGER NOT NULL REFERENCES transactions(id),
    action         TEXT NOT NULL,
    description    TEXT NOT NULL,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_history_transaction ON transaction_history(transaction_id);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
