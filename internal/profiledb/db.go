// Package profiledb persists seam profiles in SQLite. Every write also
// records a revision, so earlier versions of a profile can be listed and
// restored.
package profiledb

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/seamprofile/internal/seam"
	"github.com/banshee-data/seamprofile/internal/timeutil"
)

// DefaultRevisionLimit is how many revisions are kept per profile.
const DefaultRevisionLimit = 20

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
}

type DB struct {
	*sql.DB
	path      string
	clock     timeutil.Clock
	revisions int
}

// Option configures a DB.
type Option func(*DB)

// WithClock sets the clock used for timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(db *DB) { db.clock = c }
}

// WithRevisionLimit keeps at most n revisions per profile. n <= 0 keeps
// all of them.
func WithRevisionLimit(n int) Option {
	return func(db *DB) { db.revisions = n }
}

func dsn(path string) string {
	var b strings.Builder
	b.WriteString(path)
	for i, p := range pragmas {
		if i == 0 && !strings.Contains(path, "?") {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString("_pragma=")
		b.WriteString(p)
	}
	return b.String()
}

// OpenDB opens the database at path without touching the schema. Use it
// for the migrate commands.
func OpenDB(path string, opts ...Option) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db := &DB{DB: sqlDB, path: path, clock: timeutil.RealClock{}, revisions: DefaultRevisionLimit}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// NewDB opens the database at path and applies any pending migrations.
func NewDB(path string, opts ...Option) (*DB, error) {
	db, err := OpenDB(path, opts...)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string { return db.path }

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy retries fn a few times while SQLite reports lock contention
// that outlived busy_timeout.
func retryOnBusy(fn func() error) error {
	const attempts = 5
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 50 * time.Millisecond)
	}
	return err
}

// ReadProfile returns the stored profile id, or an error wrapping
// seam.ErrNotStored when there is none.
func (db *DB) ReadProfile(ctx context.Context, id int32) (*seam.Document, error) {
	row := db.QueryRowContext(ctx, `
		SELECT enabled, name, joint_type, joint_type_major, joint_type_minor, version, values_blob
		FROM seam_profiles
		WHERE id = ?`, id)

	doc := seam.Document{Schema: seam.ProfileSchema, ID: id}
	var blob []byte
	err := row.Scan(&doc.Enabled, &doc.Meta.Name, &doc.Meta.JointType,
		&doc.Meta.JointTypeMajor, &doc.Meta.JointTypeMinor, &doc.Meta.Version, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %d: %w", id, seam.ErrNotStored)
	}
	if err != nil {
		return nil, fmt.Errorf("query profile %d: %w", id, err)
	}

	var table seam.Table
	if err := table.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("profile %d registers: %w", id, err)
	}
	doc.V0.Values = table.Values()
	return &doc, nil
}

// WriteProfile stores doc as the latest version of its profile and
// records it as a new revision. A doc identical to the stored row is not
// written again and adds no revision.
func (db *DB) WriteProfile(ctx context.Context, doc seam.Document) error {
	if doc.Schema == "" {
		doc.Schema = seam.ProfileSchema
	}
	blob, err := seam.TableFromValues(doc.V0.Values).MarshalBinary()
	if err != nil {
		return err
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode profile %d: %w", doc.ID, err)
	}
	revisionID := uuid.New().String()
	now := db.clock.Now().UnixNano()

	return retryOnBusy(func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		same, err := unchanged(ctx, tx, doc, blob)
		if err != nil {
			return err
		}
		if same {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO seam_profile_revisions (revision_id, profile_id, document, created_at_ns)
			VALUES (?, ?, ?, ?)`,
			revisionID, doc.ID, string(docJSON), now,
		); err != nil {
			return fmt.Errorf("insert revision: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO seam_profiles (
				id, enabled, name, joint_type, joint_type_major, joint_type_minor,
				version, values_blob, revision_id, updated_at_ns
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				enabled = excluded.enabled,
				name = excluded.name,
				joint_type = excluded.joint_type,
				joint_type_major = excluded.joint_type_major,
				joint_type_minor = excluded.joint_type_minor,
				version = excluded.version,
				values_blob = excluded.values_blob,
				revision_id = excluded.revision_id,
				updated_at_ns = excluded.updated_at_ns`,
			doc.ID, doc.Enabled, doc.Meta.Name, doc.Meta.JointType, doc.Meta.JointTypeMajor,
			doc.Meta.JointTypeMinor, doc.Meta.Version, blob, revisionID, now,
		); err != nil {
			return fmt.Errorf("upsert profile %d: %w", doc.ID, err)
		}

		if db.revisions > 0 {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM seam_profile_revisions
				WHERE profile_id = ? AND revision_id NOT IN (
					SELECT revision_id FROM seam_profile_revisions
					WHERE profile_id = ?
					ORDER BY created_at_ns DESC, rowid DESC
					LIMIT ?
				)`, doc.ID, doc.ID, db.revisions,
			); err != nil {
				return fmt.Errorf("prune revisions: %w", err)
			}
		}
		return tx.Commit()
	})
}

// unchanged reports whether the stored row for doc.ID already holds doc.
func unchanged(ctx context.Context, tx *sql.Tx, doc seam.Document, blob []byte) (bool, error) {
	var stored seam.Document
	var storedBlob []byte
	err := tx.QueryRowContext(ctx, `
		SELECT enabled, name, joint_type, joint_type_major, joint_type_minor, version, values_blob
		FROM seam_profiles
		WHERE id = ?`, doc.ID,
	).Scan(&stored.Enabled, &stored.Meta.Name, &stored.Meta.JointType,
		&stored.Meta.JointTypeMajor, &stored.Meta.JointTypeMinor, &stored.Meta.Version, &storedBlob)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query profile %d: %w", doc.ID, err)
	}
	return stored.Enabled == doc.Enabled && stored.Meta == doc.Meta && bytes.Equal(storedBlob, blob), nil
}

// IDs returns the stored profile ids in ascending order.
func (db *DB) IDs(ctx context.Context) ([]int32, error) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM seam_profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query profile ids: %w", err)
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes profile id and its revisions.
func (db *DB) Delete(ctx context.Context, id int32) error {
	return retryOnBusy(func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if _, err := tx.ExecContext(ctx, `DELETE FROM seam_profile_revisions WHERE profile_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM seam_profiles WHERE id = ?`, id); err != nil {
			return err
		}
		return tx.Commit()
	})
}
