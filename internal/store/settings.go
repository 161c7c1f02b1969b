package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

const (
	settingJWTSecret    = "jwt_secret"
	settingPasswordHash = "password_hash"
)

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid TOCTOU race on concurrent startup.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		settingJWTSecret, hex.EncodeToString(buf),
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt secret: %w", err)
	}

	secret, err := getSetting(ctx, db, settingJWTSecret)
	if err != nil {
		return "", err
	}
	return secret, nil
}

// GetPasswordHash returns the bcrypt hash of the login password, or "" if
// none has been set yet.
func GetPasswordHash(ctx context.Context, db *sql.DB) (string, error) {
	hash, err := getSetting(ctx, db, settingPasswordHash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetPasswordHash stores the bcrypt hash of the login password.
func SetPasswordHash(ctx context.Context, db *sql.DB, hash string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		settingPasswordHash, hash,
	)
	if err != nil {
		return fmt.Errorf("storing password hash: %w", err)
	}
	return nil
}

func getSetting(ctx context.Context, db *sql.DB, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("querying setting %s: %w", key, err)
	}
	return value, nil
}
