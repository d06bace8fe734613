package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func GetJWTSecret(ctx context.Context, db DBTX) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('jwt_secret', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	var secret string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'jwt_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}

	return secret, nil
}

// SetLastOverdueScan records when the overdue scanner last completed a pass.
func SetLastOverdueScan(ctx context.Context, db DBTX, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES ('last_overdue_scan', ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing last_overdue_scan: %w", err)
	}
	return nil
}

// GetLastOverdueScan returns the time of the last completed overdue scan,
// or the zero time if no scan has run yet.
func GetLastOverdueScan(ctx context.Context, db DBTX) (time.Time, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'last_overdue_scan'`,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("querying last_overdue_scan: %w", err)
	}

	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing last_overdue_scan: %w", err)
	}
	return at, nil
}
