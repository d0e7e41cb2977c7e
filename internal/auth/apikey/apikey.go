// Package apikey issues and validates the API keys that guard the write
// endpoints of the search service. Raw keys are generated with crypto/rand
// and only their SHA-256 digest is stored.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// KeyInfo is what a validated key carries through the request.
type KeyInfo struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	RateLimit int        `json:"rate_limit"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// keyRow mirrors the table. Times are unix milliseconds; expires_at and
// revoked_at are NULL when unset.
type keyRow struct {
	ID        int64         `db:"id"`
	Name      string        `db:"name"`
	RateLimit int           `db:"rate_limit"`
	CreatedAt int64         `db:"created_at"`
	ExpiresAt sql.NullInt64 `db:"expires_at"`
}

func (r keyRow) info() KeyInfo {
	k := KeyInfo{
		ID:        r.ID,
		Name:      r.Name,
		RateLimit: r.RateLimit,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.ExpiresAt.Valid {
		t := time.UnixMilli(r.ExpiresAt.Int64).UTC()
		k.ExpiresAt = &t
	}
	return k
}

var schema = map[string]string{
	database.DriverSQLite: `CREATE TABLE IF NOT EXISTS api_keys (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	key_hash   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	rate_limit INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER,
	revoked_at INTEGER
)`,
	database.DriverPostgres: `CREATE TABLE IF NOT EXISTS api_keys (
	id         BIGSERIAL PRIMARY KEY,
	key_hash   CHAR(64) NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	rate_limit INTEGER NOT NULL,
	created_at BIGINT NOT NULL,
	expires_at BIGINT,
	revoked_at BIGINT
)`,
	database.DriverMySQL: `CREATE TABLE IF NOT EXISTS api_keys (
	id         BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
	key_hash   CHAR(64) NOT NULL UNIQUE,
	name       VARCHAR(255) NOT NULL,
	rate_limit INT NOT NULL,
	created_at BIGINT NOT NULL,
	expires_at BIGINT NULL,
	revoked_at BIGINT NULL
)`,
}

const selectCols = `SELECT id, name, rate_limit, created_at, expires_at FROM api_keys`

// Validator validates keys against the api_keys table.
type Validator struct {
	db     *database.Client
	now    func() time.Time
	logger *slog.Logger
}

func NewValidator(db *database.Client) *Validator {
	return &Validator{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "apikey-validator"),
	}
}

// Migrate creates the api_keys table if it does not exist.
func (v *Validator) Migrate(ctx context.Context) error {
	ddl, ok := schema[v.db.Driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q: %w", v.db.Driver, apperrors.ErrInvalidArgument)
	}
	if _, err := v.db.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrating api_keys table: %w", err)
	}
	return nil
}

// Validate returns the key's info, or ErrInvalidKey for unknown and revoked
// keys and ErrExpiredKey for expired ones.
func (v *Validator) Validate(ctx context.Context, rawKey string) (KeyInfo, error) {
	var r keyRow
	err := v.db.DB.GetContext(ctx, &r, v.db.DB.Rebind(selectCols+` WHERE key_hash = ? AND revoked_at IS NULL`), HashKey(rawKey))
	if errors.Is(err, sql.ErrNoRows) {
		return KeyInfo{}, ErrInvalidKey
	}
	if err != nil {
		return KeyInfo{}, fmt.Errorf("querying api key: %w", err)
	}
	if r.ExpiresAt.Valid && r.ExpiresAt.Int64 <= v.now().UnixMilli() {
		return KeyInfo{}, ErrExpiredKey
	}
	return r.info(), nil
}

// CreateKey stores a new key and returns the raw value, which cannot be
// recovered later.
func (v *Validator) CreateKey(ctx context.Context, name string, rateLimit int, expiresAt *time.Time) (string, KeyInfo, error) {
	if name == "" {
		return "", KeyInfo{}, fmt.Errorf("key name is empty: %w", apperrors.ErrInvalidArgument)
	}
	if rateLimit <= 0 {
		return "", KeyInfo{}, fmt.Errorf("rate limit %d: %w", rateLimit, apperrors.ErrInvalidArgument)
	}
	rawKey, err := generateRawKey()
	if err != nil {
		return "", KeyInfo{}, err
	}
	var expiry sql.NullInt64
	if expiresAt != nil {
		expiry = sql.NullInt64{Int64: expiresAt.UnixMilli(), Valid: true}
	}
	hash := HashKey(rawKey)
	_, err = v.db.DB.ExecContext(ctx, v.db.DB.Rebind(
		`INSERT INTO api_keys (key_hash, name, rate_limit, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`),
		hash, name, rateLimit, v.now().UnixMilli(), expiry,
	)
	if err != nil {
		return "", KeyInfo{}, fmt.Errorf("creating api key: %w", err)
	}
	var r keyRow
	if err := v.db.DB.GetContext(ctx, &r, v.db.DB.Rebind(selectCols+` WHERE key_hash = ?`), hash); err != nil {
		return "", KeyInfo{}, fmt.Errorf("reading created api key: %w", err)
	}
	v.logger.Info("api key created", "name", name, "rate_limit", rateLimit)
	return rawKey, r.info(), nil
}

// RevokeKey deactivates a key so it no longer validates.
func (v *Validator) RevokeKey(ctx context.Context, rawKey string) error {
	res, err := v.db.DB.ExecContext(ctx, v.db.DB.Rebind(
		`UPDATE api_keys SET revoked_at = ? WHERE key_hash = ? AND revoked_at IS NULL`),
		v.now().UnixMilli(), HashKey(rawKey),
	)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidKey
	}
	v.logger.Info("api key revoked")
	return nil
}

// ListKeys returns active keys, newest first.
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	var rows []keyRow
	if err := v.db.DB.SelectContext(ctx, &rows, selectCols+` WHERE revoked_at IS NULL ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	keys := make([]KeyInfo, len(rows))
	for i, r := range rows {
		keys[i] = r.info()
	}
	return keys, nil
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
