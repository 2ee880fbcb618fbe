package profiledb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/seamprofile/internal/seam"
)

// Revision is one stored version of a profile.
type Revision struct {
	RevisionID  string `json:"revision_id"`
	ProfileID   int32  `json:"profile_id"`
	CreatedAtNs int64  `json:"created_at_ns"`
	Current     bool   `json:"current"`
}

// Revisions lists the kept revisions of profile id, newest first.
func (db *DB) Revisions(ctx context.Context, id int32) ([]Revision, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT r.revision_id, r.profile_id, r.created_at_ns,
		       COALESCE(p.revision_id = r.revision_id, 0)
		FROM seam_profile_revisions r
		LEFT JOIN seam_profiles p ON p.id = r.profile_id
		WHERE r.profile_id = ?
		ORDER BY r.created_at_ns DESC, r.rowid DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.RevisionID, &r.ProfileID, &r.CreatedAtNs, &r.Current); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RevisionDocument returns the profile as it was stored in revisionID.
func (db *DB) RevisionDocument(ctx context.Context, revisionID string) (*seam.Document, error) {
	var raw string
	err := db.QueryRowContext(ctx,
		`SELECT document FROM seam_profile_revisions WHERE revision_id = ?`, revisionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: revision %s", seam.ErrNotFound, revisionID)
	}
	if err != nil {
		return nil, fmt.Errorf("query revision %s: %w", revisionID, err)
	}
	return seam.DecodeDocument([]byte(raw))
}

// Restore writes revisionID back as the latest version of its profile.
// The restore is itself recorded as a new revision.
func (db *DB) Restore(ctx context.Context, revisionID string) (*seam.Document, error) {
	doc, err := db.RevisionDocument(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	if err := db.WriteProfile(ctx, *doc); err != nil {
		return nil, err
	}
	return doc, nil
}
