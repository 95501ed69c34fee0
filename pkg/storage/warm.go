package storage

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const warmSchema = `
	CREATE TABLE IF NOT EXISTS warm_blobs (
		id TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		compression TEXT NOT NULL,
		raw_size INTEGER NOT NULL,
		size_tokens INTEGER NOT NULL,
		checksum BLOB NOT NULL,
		stored_at INTEGER NOT NULL
	);
`

// WarmTier keeps module content in a SQLite table, LZ4-compressed when
// that shrinks the payload. Content survives process restarts.
type WarmTier struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// NewWarmTier opens (or creates) the warm database at path
func NewWarmTier(path string, logger zerolog.Logger) (*WarmTier, error) {
	if path == "" {
		return nil, errors.New("warm database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create warm directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// All access goes through the loader lock; a single connection
	// avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(warmSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	w := &WarmTier{
		db:     db,
		path:   path,
		logger: logger.With().Str("component", "warm-tier").Logger(),
	}
	w.logger.Debug().Str("path", path).Msg("Warm tier opened")
	return w, nil
}

func (w *WarmTier) Name() string { return NameWarm }

func (w *WarmTier) Store(id string, blob Blob) (bool, error) {
	if err := validateID(id); err != nil {
		return false, err
	}

	payload, algorithm, err := compress(blob.Data, CompressionLZ4)
	if err != nil {
		return false, fmt.Errorf("failed to compress %s: %w", id, err)
	}
	if payload == nil {
		// go-sqlite3 binds a nil slice as NULL
		payload = []byte{}
	}

	_, err = w.db.Exec(
		`INSERT OR REPLACE INTO warm_blobs (id, payload, compression, raw_size, size_tokens, checksum, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, payload, string(algorithm), len(blob.Data), blob.SizeTokens, checksum(blob.Data), time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to store %s in warm tier: %w", id, err)
	}

	w.logger.Debug().
		Str("module", id).
		Int("raw_bytes", len(blob.Data)).
		Int("stored_bytes", len(payload)).
		Str("compression", string(algorithm)).
		Msg("Stored blob")
	return true, nil
}

func (w *WarmTier) Retrieve(id string) (Blob, bool, error) {
	var (
		payload    []byte
		algorithm  string
		rawSize    int
		sizeTokens int
		sum        []byte
	)
	err := w.db.QueryRow(
		`SELECT payload, compression, raw_size, size_tokens, checksum FROM warm_blobs WHERE id = ?`, id,
	).Scan(&payload, &algorithm, &rawSize, &sizeTokens, &sum)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, false, nil
	}
	if err != nil {
		return Blob{}, false, fmt.Errorf("failed to read %s from warm tier: %w", id, err)
	}

	data, err := decompress(payload, Compression(algorithm), rawSize)
	if err != nil {
		return Blob{}, false, fmt.Errorf("%s: %w", id, err)
	}
	if !bytes.Equal(checksum(data), sum) {
		return Blob{}, false, fmt.Errorf("%w: checksum mismatch for %s", ErrCorrupted, id)
	}
	if data == nil {
		data = []byte{}
	}

	return Blob{
		Data:       data,
		SizeTokens: sizeTokens,
		Compressed: Compression(algorithm) != CompressionNone,
	}, true, nil
}

func (w *WarmTier) Remove(id string) (bool, error) {
	result, err := w.db.Exec(`DELETE FROM warm_blobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to remove %s from warm tier: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to remove %s from warm tier: %w", id, err)
	}
	return n > 0, nil
}

func (w *WarmTier) Has(id string) (bool, error) {
	var one int
	err := w.db.QueryRow(`SELECT 1 FROM warm_blobs WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query warm tier for %s: %w", id, err)
	}
	return true, nil
}

func (w *WarmTier) IDs() ([]string, error) {
	rows, err := w.db.Query(`SELECT id FROM warm_blobs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list warm tier: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan warm tier id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database
func (w *WarmTier) Close() error {
	return w.db.Close()
}
