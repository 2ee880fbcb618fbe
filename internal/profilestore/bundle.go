package profilestore

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/banshee-data/seamprofile/internal/monitoring"
	"github.com/banshee-data/seamprofile/internal/seam"
)

// MetaOnly is the short listing entry written by DumpMetaOnly.
type MetaOnly struct {
	Enabled bool      `json:"enabled"`
	ID      int32     `json:"id"`
	Meta    seam.Info `json:"meta"`
}

// MetaOf returns the listing entry of p.
func MetaOf(p *seam.Profile) MetaOnly {
	return MetaOnly{Enabled: p.Enabled(), ID: p.ID(), Meta: p.Info()}
}

// MetaOnlyBundle is the document written by DumpMetaOnly.
type MetaOnlyBundle struct {
	Schema   string     `json:"schema"`
	Profiles []MetaOnly `json:"profiles"`
}

// selected returns the enabled loaded profiles, narrowed to ids when any
// are given.
func (s *Store) selected(ids []int32) []*seam.Profile {
	var out []*seam.Profile
	for _, p := range s.profiles() {
		if !p.Enabled() {
			continue
		}
		if len(ids) > 0 && !slices.Contains(ids, p.ID()) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Bundle returns the enabled profiles as a profiles document.
func (s *Store) Bundle(ids ...int32) seam.Bundle {
	b := seam.Bundle{Schema: seam.ProfilesSchema, Profiles: []seam.Document{}}
	for _, p := range s.selected(ids) {
		b.Profiles = append(b.Profiles, seam.DocumentOf(p))
	}
	return b
}

// MetaOnly returns the enabled profiles without their registers.
func (s *Store) MetaOnly(ids ...int32) MetaOnlyBundle {
	b := MetaOnlyBundle{Schema: seam.MetaOnlySchema, Profiles: []MetaOnly{}}
	for _, p := range s.selected(ids) {
		b.Profiles = append(b.Profiles, MetaOf(p))
	}
	return b
}

// Dump writes the enabled profiles, or only ids when given, as JSON.
func (s *Store) Dump(w io.Writer, ids ...int32) error {
	return json.NewEncoder(w).Encode(s.Bundle(ids...))
}

// DumpMetaOnly writes the short listing of the enabled profiles as JSON.
func (s *Store) DumpMetaOnly(w io.Writer, ids ...int32) error {
	return json.NewEncoder(w).Encode(s.MetaOnly(ids...))
}

// ImportJSON registers the profiles in r, which holds either one profile
// document or a profiles bundle. Each profile is built before it is
// registered, ids outside the store range are skipped, and the current
// profile is not changed. It returns the number of profiles registered.
func (s *Store) ImportJSON(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("%w: read import: %w", seam.ErrLoadFailed, err)
	}

	var probe struct {
		Profiles json.RawMessage `json:"profiles"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("%w: %w", seam.ErrLoadFailed, err)
	}

	var docs []seam.Document
	if probe.Profiles != nil {
		var b seam.Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return 0, fmt.Errorf("%w: decode bundle: %w", seam.ErrLoadFailed, err)
		}
		docs = b.Profiles
	} else {
		doc, err := seam.DecodeDocument(data)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", seam.ErrLoadFailed, err)
		}
		docs = []seam.Document{*doc}
	}

	// build everything first so a bad entry registers nothing
	built := make([]*seam.Profile, 0, len(docs))
	for i := range docs {
		if err := s.checkID(docs[i].ID); err != nil {
			monitoring.Logf("import: skipping profile: %v", err)
			continue
		}
		p, err := docs[i].Build()
		if err != nil {
			return 0, fmt.Errorf("%w: profile %d: %w", seam.ErrLoadFailed, docs[i].ID, err)
		}
		built = append(built, p)
	}
	for _, p := range built {
		s.register(p)
	}
	return len(built), nil
}
