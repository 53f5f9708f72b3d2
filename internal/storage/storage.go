// Package storage is a diagnostics-only, pure-Go (cgo-free) session
// journal and catalog-snapshot writer. It is never consulted to seed a
// session's channel catalog: the catalog is still built exactly once
// per session from fresh PSI acquisition (data-model invariant). This
// package exists purely so a field technician can inspect what a prior
// session saw after the fact.
package storage

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andybalholm/brotli"
	_ "modernc.org/sqlite"
)

// Store wraps a pure-Go SQLite database used as an append-only
// diagnostics journal.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the journal database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS channel_switches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at_unix INTEGER NOT NULL,
			channel_index INTEGER NOT NULL,
			program_number INTEGER NOT NULL,
			ok INTEGER NOT NULL,
			reason TEXT
		);
		CREATE TABLE IF NOT EXISTS catalog_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at_unix INTEGER NOT NULL,
			channel_count INTEGER NOT NULL,
			snapshot_brotli BLOB NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	return nil
}

// RecordSwitch appends one channel-switch outcome to the journal.
func (s *Store) RecordSwitch(at time.Time, channelIndex int, programNumber uint16, ok bool, reason string) error {
	_, err := s.db.Exec(
		`INSERT INTO channel_switches (at_unix, channel_index, program_number, ok, reason) VALUES (?, ?, ?, ?, ?)`,
		at.Unix(), channelIndex, programNumber, boolToInt(ok), reason,
	)
	if err != nil {
		return fmt.Errorf("storage: record switch: %w", err)
	}
	return nil
}

// SnapshotCatalog persists a brotli-compressed JSON snapshot of the
// catalog for post-hoc inspection. catalog is any JSON-marshalable
// value (internal/controller passes the catalog's Channels slice), so
// this package does not import internal/catalog.
func (s *Store) SnapshotCatalog(at time.Time, channelCount int, catalog interface{}) error {
	raw, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("storage: marshal catalog snapshot: %w", err)
	}

	var compressed bytes.Buffer
	w := brotli.NewWriter(&compressed)
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("storage: compress catalog snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("storage: close brotli writer: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO catalog_snapshots (at_unix, channel_count, snapshot_brotli) VALUES (?, ?, ?)`,
		at.Unix(), channelCount, compressed.Bytes(),
	)
	if err != nil {
		return fmt.Errorf("storage: insert catalog snapshot: %w", err)
	}
	return nil
}

// LatestCatalogSnapshot returns the most recently stored snapshot,
// decompressed, for diagnostic inspection. It is never used to seed a
// live session's catalog.
func (s *Store) LatestCatalogSnapshot() ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT snapshot_brotli FROM catalog_snapshots ORDER BY id DESC LIMIT 1`).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: query latest snapshot: %w", err)
	}

	r := brotli.NewReader(bytes.NewReader(compressed))
	var out bytes.Buffer
	if _, err := out.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("storage: decompress snapshot: %w", err)
	}
	return out.Bytes(), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
