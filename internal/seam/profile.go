package seam

import "sync/atomic"

// Info is the descriptive metadata persisted with a profile.
type Info struct {
	Name           string `json:"name"`
	JointType      int32  `json:"jointType"`
	JointTypeMajor int32  `json:"jointTypeMajor"`
	JointTypeMinor int32  `json:"jointTypeMinor"`
	Version        int32  `json:"version"`
}

// DefaultInfo returns the metadata given to freshly created profiles.
func DefaultInfo() Info {
	return Info{Name: "Profile"}
}

// SetJointType stores v and derives its major and minor parts.
func (i *Info) SetJointType(v int32) {
	i.JointType = v
	i.JointTypeMajor = v >> 8
	i.JointTypeMinor = v & 0xFF
}

// Profile is one complete parameter set: identity, enable flag, metadata,
// an opaque caller payload and the register table.
//
// Identity, enable flag and metadata are atomic because Profile.CopyFrom
// may rewrite them while the profile is published.
type Profile struct {
	id      atomic.Int32
	enabled atomic.Bool
	info    atomic.Pointer[Info]
	meta    any
	table   *Table
}

// ProfileOption customises NewProfile.
type ProfileOption func(*Profile)

// WithInfo sets the profile metadata.
func WithInfo(info Info) ProfileOption {
	return func(p *Profile) { p.info.Store(&info) }
}

// WithMeta attaches an opaque payload. The store hands it back unchanged
// and never looks inside.
func WithMeta(meta any) ProfileOption {
	return func(p *Profile) { p.meta = meta }
}

// NewProfile wraps table, which the profile then aliases. A nil table is
// replaced by a zeroed one.
func NewProfile(id int32, enabled bool, table *Table, opts ...ProfileOption) *Profile {
	if table == nil {
		table = NewTable()
	}
	p := &Profile{table: table}
	p.id.Store(id)
	p.enabled.Store(enabled)
	info := DefaultInfo()
	p.info.Store(&info)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Profile) ID() int32 { return p.id.Load() }

func (p *Profile) Enabled() bool { return p.enabled.Load() }

func (p *Profile) SetEnabled(on bool) { p.enabled.Store(on) }

// Info returns a copy of the metadata.
func (p *Profile) Info() Info { return *p.info.Load() }

func (p *Profile) SetInfo(info Info) { p.info.Store(&info) }

// Meta returns the opaque payload given to WithMeta.
func (p *Profile) Meta() any { return p.meta }

// Table returns the register table. It is shared, not copied.
func (p *Profile) Table() *Table { return p.table }

// Name is shorthand for Info().Name.
func (p *Profile) Name() string { return p.info.Load().Name }

// Clone returns a profile with a private copy of the table. The opaque
// payload is shared.
func (p *Profile) Clone() *Profile {
	c := &Profile{meta: p.meta, table: p.table.Clone()}
	c.id.Store(p.ID())
	c.enabled.Store(p.Enabled())
	info := p.Info()
	c.info.Store(&info)
	return c
}

// CopyFrom overwrites p in place with the enable flag, id, metadata and
// every register of src. p keeps its own table; readers of p may observe a
// mix of old and new registers while the copy runs.
func (p *Profile) CopyFrom(src *Profile) {
	p.enabled.Store(src.Enabled())
	p.id.Store(src.ID())
	info := src.Info()
	info.SetJointType(src.table.JointType())
	p.info.Store(&info)
	p.table.CopyFrom(src.table)
}
