package seam

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Schema identifiers written into persisted documents.
const (
	ProfileSchema  = "https://full-v.com/schemas/seam-profile.json"
	ProfilesSchema = "https://full-v.com/schemas/seam-profiles.json"
	MetaOnlySchema = "https://full-v.com/schemas/seam-profiles-meta-only.json"
)

// ParamsV0 is the persisted form of a register table: every register as
// its int32 image, in flat order.
type ParamsV0 struct {
	Values []int32 `json:"values"`
}

// UnmarshalJSON rejects unknown keys so a table in some other layout is
// never read as zeros.
func (v *ParamsV0) UnmarshalJSON(data []byte) error {
	type plain ParamsV0
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var out plain
	if err := dec.Decode(&out); err != nil {
		return fmt.Errorf("v0: %w", err)
	}
	*v = ParamsV0(out)
	return nil
}

// Document is the storage description of one profile.
type Document struct {
	Schema  string   `json:"schema"`
	Enabled bool     `json:"enabled"`
	ID      int32    `json:"id"`
	Meta    Info     `json:"meta"`
	V0      ParamsV0 `json:"v0"`
}

// Bundle is a list of profile documents, as written by a profiles dump.
type Bundle struct {
	Schema   string     `json:"schema"`
	Profiles []Document `json:"profiles"`
}

// DecodeDocument parses a single profile document.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &doc, nil
}

// Validate checks the parts of a document that Build relies on.
func (d *Document) Validate() error {
	if d.Schema != "" && d.Schema != ProfileSchema {
		return fmt.Errorf("unexpected schema %q", d.Schema)
	}
	return nil
}

// Build constructs a new, unpublished profile from the document. The
// value list is zero-padded or truncated to NumRegisters.
func (d *Document) Build(opts ...ProfileOption) (*Profile, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	table := TableFromValues(d.V0.Values)
	opts = append([]ProfileOption{WithInfo(d.Meta)}, opts...)
	return NewProfile(d.ID, d.Enabled, table, opts...), nil
}

// DocumentOf captures the persisted form of p. The joint type in the
// metadata is taken from the SF registers, which may have been written
// since the metadata was set.
func DocumentOf(p *Profile) Document {
	info := p.Info()
	info.SetJointType(p.Table().JointType())
	return Document{
		Schema:  ProfileSchema,
		Enabled: p.Enabled(),
		ID:      p.ID(),
		Meta:    info,
		V0:      ParamsV0{Values: p.Table().Values()},
	}
}

// DefaultDocument describes a disabled, zeroed profile for id.
func DefaultDocument(id int32) Document {
	return Document{
		Schema: ProfileSchema,
		ID:     id,
		Meta:   DefaultInfo(),
		V0:     ParamsV0{Values: make([]int32, NumRegisters)},
	}
}
