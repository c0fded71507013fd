package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"detour/internal/provision/models"
	"detour/internal/singbox"
	"detour/pkg/platform/sentinel"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS clients (
	name       TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	platform   TEXT NOT NULL,
	regions    TEXT NOT NULL,
	file_name  TEXT NOT NULL,
	public_url TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// Sqlite is a Registry backed by an embedded sqlite database. Per-region
// identities are stored as a JSON column; everything queried by is a proper
// column.
type Sqlite struct {
	db *sql.DB
}

// OpenSqlite opens (creating if necessary) the registry database at path.
func OpenSqlite(path string) (*Sqlite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite registry: %w", err)
	}
	// The registry sees low write concurrency; a single connection keeps
	// sqlite's writer locking out of the picture.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create registry schema: %w", err)
	}
	return &Sqlite{db: db}, nil
}

func (s *Sqlite) Close() error { return s.db.Close() }

func (s *Sqlite) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM clients WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Sqlite) Put(ctx context.Context, record *models.Record) error {
	regions, err := json.Marshal(record.Client.Regions)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (name, email, platform, regions, file_name, public_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING`,
		record.Client.Name,
		record.Client.Email,
		string(record.Client.Platform),
		string(regions),
		record.Document.FileName,
		record.Document.PublicURL,
		record.Client.CreatedAt.UTC(),
		record.Client.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *Sqlite) Get(ctx context.Context, name string) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, email, platform, regions, file_name, public_url, created_at, updated_at
		FROM clients WHERE name = ?`, name)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return record, err
}

func (s *Sqlite) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Sqlite) List(ctx context.Context) ([]*models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, email, platform, regions, file_name, public_url, created_at, updated_at
		FROM clients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *Sqlite) UpdateDocument(ctx context.Context, name string, ref models.DocumentRef) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE clients SET file_name = ?, public_url = ?, updated_at = ? WHERE name = ?`,
		ref.FileName, ref.PublicURL, time.Now().UTC(), name)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		client    models.Client
		platform  string
		regions   string
		document  models.DocumentRef
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&client.Name, &client.Email, &platform, &regions,
		&document.FileName, &document.PublicURL, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(regions), &client.Regions); err != nil {
		return nil, fmt.Errorf("decode regions for %s: %w", client.Name, err)
	}
	client.Platform = singbox.Platform(platform)
	client.CreatedAt = createdAt
	client.UpdatedAt = updatedAt
	return &models.Record{Client: &client, Document: document}, nil
}
