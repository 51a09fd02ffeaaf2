package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arclight-systems/machine-core/internal/infrastructure/database"
)

// Record is one catalog row describing a saved snapshot file.
type Record struct {
	ID           string
	HardwareType string
	Filename     string
	Path         string
	Comment      string
	DeviceCount  int
	CreatedAt    time.Time
}

// Catalog indexes saved snapshot files in SQLite so they can be listed
// and looked up without walking the snapshot tree. The YAML files stay
// the source of truth for point values.
type Catalog struct {
	db *database.DB
}

// NewCatalog creates a catalog over an opened database. The snapshots
// table comes from the embedded migrations.
func NewCatalog(db *database.DB) (*Catalog, error) {
	if db == nil {
		return nil, errors.New("snapshot: catalog needs a database")
	}
	return &Catalog{db: db}, nil
}

// Record inserts one row. A zero ID gets a fresh UUID and a zero
// CreatedAt gets the current time.
func (c *Catalog) Record(ctx context.Context, record Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO snapshots (id, hardware_type, filename, path, comment, device_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.HardwareType,
		record.Filename,
		record.Path,
		record.Comment,
		record.DeviceCount,
		record.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording snapshot %q: %w", record.Filename, err)
	}
	return nil
}

// List returns every recorded snapshot for a hardware type, newest
// first.
func (c *Catalog) List(ctx context.Context, hardwareType string) ([]Record, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, hardware_type, filename, path, comment, device_count, created_at
		FROM snapshots
		WHERE hardware_type = ?
		ORDER BY created_at DESC, id`,
		hardwareType,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return records, nil
}

// Latest returns the most recently recorded snapshot for a hardware
// type.
func (c *Catalog) Latest(ctx context.Context, hardwareType string) (Record, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, hardware_type, filename, path, comment, device_count, created_at
		FROM snapshots
		WHERE hardware_type = ?
		ORDER BY created_at DESC, id
		LIMIT 1`,
		hardwareType,
	)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: no snapshots recorded for %q", ErrNotFound, hardwareType)
		}
		return Record{}, err
	}
	return record, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var (
		record  Record
		created string
	)
	err := s.Scan(
		&record.ID,
		&record.HardwareType,
		&record.Filename,
		&record.Path,
		&record.Comment,
		&record.DeviceCount,
		&created,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scanning snapshot record: %w", err)
	}

	if ts, err := time.Parse(time.RFC3339, created); err == nil {
		record.CreatedAt = ts
	}
	return record, nil
}
