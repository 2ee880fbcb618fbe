// Package profilestore holds the bank of loaded seam profiles and the one
// profile that is current for the process.
//
// Profiles are built completely before they become visible. Switch and
// SetCurrent publish by swapping a single pointer, so a reader that fetched
// the current profile keeps a whole, consistent table afterwards. Fill is
// the exception: it rewrites the current profile in place, and a reader
// running alongside it may see some registers old and some new.
//
// Do not keep the *seam.Profile returned by Current across Switch, Fill or
// SetCurrent. Use Snapshot for an owned copy or WithCurrent for a scoped
// read.
package profilestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/seamprofile/internal/monitoring"
	"github.com/banshee-data/seamprofile/internal/seam"
)

// MaxProfiles is the number of profile ids a store addresses by default.
const MaxProfiles = 256

// Source reads persisted profile descriptions. Implementations wrap
// seam.ErrNotStored when they have no record for an id.
type Source interface {
	ReadProfile(ctx context.Context, id int32) (*seam.Document, error)
}

// Sink writes persisted profile descriptions.
type Sink interface {
	WriteProfile(ctx context.Context, doc seam.Document) error
}

// Store is the profile bank. The zero value is not usable; call New.
type Store struct {
	src           Source
	sink          Sink
	max           int
	createMissing bool

	// mu serialises writers and guards loaded. Readers of the current
	// profile never take it.
	mu      sync.RWMutex
	loaded  map[int32]*seam.Profile
	current atomic.Pointer[seam.Profile]
}

// Option configures a Store.
type Option func(*Store)

// WithSink sets where Save, SaveAll and LoadAll write. By default the
// Source is used when it also implements Sink.
func WithSink(sink Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithMaxProfiles limits the id range to [0,n).
func WithMaxProfiles(n int) Option {
	return func(s *Store) { s.max = n }
}

// WithCreateMissing makes LoadAll write a default profile for every id the
// source does not have.
func WithCreateMissing(on bool) Option {
	return func(s *Store) { s.createMissing = on }
}

// New returns an empty store reading from src.
func New(src Source, opts ...Option) *Store {
	s := &Store{
		src:    src,
		max:    MaxProfiles,
		loaded: make(map[int32]*seam.Profile),
	}
	if sink, ok := src.(Sink); ok {
		s.sink = sink
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.max <= 0 || s.max > MaxProfiles {
		s.max = MaxProfiles
	}
	return s
}

// MaxID returns the exclusive upper bound of valid profile ids.
func (s *Store) MaxID() int32 {
	return int32(s.max)
}

func (s *Store) checkID(id int32) error {
	if id < 0 || int(id) >= s.max {
		return fmt.Errorf("%w: profile id %d not in [0,%d)", seam.ErrIndexOutOfRange, id, s.max)
	}
	return nil
}

// Load reads profile id from the source and builds it in isolation. Only
// a fully built profile is registered; on any failure the store, and the
// current profile, are left as they were. Load never changes the current
// profile, even when id is the current id: the fresh copy waits among the
// loaded profiles until Switch, while Save, Enable and Disable keep acting
// on the current profile for that id.
func (s *Store) Load(ctx context.Context, id int32) (*seam.Profile, error) {
	if err := s.checkID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", seam.ErrLoadFailed, err)
	}
	if s.src == nil {
		return nil, fmt.Errorf("%w: profile %d: no storage configured", seam.ErrLoadFailed, id)
	}

	doc, err := s.src.ReadProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: profile %d: %w", seam.ErrLoadFailed, id, err)
	}
	if doc.ID != id {
		return nil, fmt.Errorf("%w: storage returned profile %d for id %d", seam.ErrLoadFailed, doc.ID, id)
	}
	p, err := doc.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: profile %d: %w", seam.ErrLoadFailed, id, err)
	}

	s.register(p)
	return p, nil
}

func (s *Store) register(p *seam.Profile) {
	s.mu.Lock()
	s.loaded[p.ID()] = p
	s.mu.Unlock()
}

// Switch makes the loaded profile id current by pointer replacement. It
// returns seam.ErrNotFound when id has not been loaded; it never loads on
// its own.
func (s *Store) Switch(id int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.loaded[id]
	if !ok {
		return fmt.Errorf("%w: profile %d is not loaded", seam.ErrNotFound, id)
	}
	prev := s.current.Swap(p)
	if prev != p {
		monitoring.Logf("switched current profile id=%d name=%q", id, p.Name())
	}
	return nil
}

// LoadAndSwitch loads id and, if that succeeds, makes it current.
func (s *Store) LoadAndSwitch(ctx context.Context, id int32) error {
	if _, err := s.Load(ctx, id); err != nil {
		return err
	}
	return s.Switch(id)
}

// Fill copies the enable flag, id, metadata and all registers of src into
// the current profile in place. The current pointer is unchanged. When the
// id changes, the current profile is filed under its new id among the
// loaded profiles, replacing whatever was loaded there.
func (s *Store) Fill(src *seam.Profile) error {
	if src == nil {
		return seam.ErrNilProfile
	}
	if err := s.checkID(src.ID()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	if cur == nil {
		return fmt.Errorf("%w: no current profile", seam.ErrNotFound)
	}
	if cur == src {
		return nil
	}
	oldID := cur.ID()
	cur.CopyFrom(src)
	if newID := cur.ID(); newID != oldID {
		if s.loaded[oldID] == cur {
			delete(s.loaded, oldID)
		}
		s.loaded[newID] = cur
		monitoring.Logf("current profile refiled id=%d -> id=%d", oldID, newID)
	}
	return nil
}

// SetCurrent publishes p as the current profile without copying it. The
// store does not register p among the loaded profiles.
func (s *Store) SetCurrent(p *seam.Profile) error {
	if p == nil {
		return seam.ErrNilProfile
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Store(p)
	monitoring.Logf("replaced current profile id=%d", p.ID())
	return nil
}

// Current returns the current profile, or nil when none is active. The
// result is only valid until the next Switch, Fill or SetCurrent.
func (s *Store) Current() *seam.Profile {
	return s.current.Load()
}

// CurrentID returns the id of the current profile, or -1 when none is
// active.
func (s *Store) CurrentID() int32 {
	if p := s.current.Load(); p != nil {
		return p.ID()
	}
	return -1
}

// Snapshot returns a private copy of the current profile.
func (s *Store) Snapshot() (*seam.Profile, error) {
	p := s.current.Load()
	if p == nil {
		return nil, fmt.Errorf("%w: no current profile", seam.ErrNotFound)
	}
	return p.Clone(), nil
}

// WithCurrent calls fn with the current profile. fn must not retain it.
func (s *Store) WithCurrent(fn func(p *seam.Profile) error) error {
	p := s.current.Load()
	if p == nil {
		return fmt.Errorf("%w: no current profile", seam.ErrNotFound)
	}
	return fn(p)
}

// live returns the profile that Save and the enable flags act on for id:
// the current profile when it carries id and id is loaded, otherwise the
// loaded profile.
func (s *Store) live(id int32) (*seam.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.loaded[id]
	if !ok {
		return nil, fmt.Errorf("%w: profile %d is not loaded", seam.ErrNotFound, id)
	}
	if cur := s.current.Load(); cur != nil && cur.ID() == id {
		return cur, nil
	}
	return p, nil
}

// Get returns the loaded profile id.
func (s *Store) Get(id int32) (*seam.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.loaded[id]
	if !ok {
		return nil, fmt.Errorf("%w: profile %d is not loaded", seam.ErrNotFound, id)
	}
	return p, nil
}

// IDs returns the loaded profile ids in ascending order.
func (s *Store) IDs() []int32 {
	s.mu.RLock()
	ids := make([]int32, 0, len(s.loaded))
	for id := range s.loaded {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// profiles returns the live profile of every loaded id, in id order.
func (s *Store) profiles() []*seam.Profile {
	ids := s.IDs()
	out := make([]*seam.Profile, 0, len(ids))
	for _, id := range ids {
		if p, err := s.live(id); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// Enable marks profile id as enabled.
func (s *Store) Enable(id int32) error {
	return s.setEnabled(id, true)
}

// Disable marks profile id as disabled.
func (s *Store) Disable(id int32) error {
	return s.setEnabled(id, false)
}

func (s *Store) setEnabled(id int32, on bool) error {
	p, err := s.live(id)
	if err != nil {
		return err
	}
	p.SetEnabled(on)
	return nil
}

// EnableAll marks every loaded profile enabled.
func (s *Store) EnableAll() {
	for _, p := range s.profiles() {
		p.SetEnabled(true)
	}
}

// DisableAll marks every loaded profile disabled.
func (s *Store) DisableAll() {
	for _, p := range s.profiles() {
		p.SetEnabled(false)
	}
}

// Save writes profile id to the sink. When id is current, the current
// profile is written.
func (s *Store) Save(ctx context.Context, id int32) error {
	if s.sink == nil {
		return errors.New("profile store has no sink")
	}
	p, err := s.live(id)
	if err != nil {
		return err
	}
	if err := s.sink.WriteProfile(ctx, seam.DocumentOf(p)); err != nil {
		return fmt.Errorf("save profile %d: %w", id, err)
	}
	return nil
}

// SaveAll writes every loaded profile and reports all failures together.
func (s *Store) SaveAll(ctx context.Context) error {
	var errs []error
	for _, id := range s.IDs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Save(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadAll loads every id in range. Ids the source has no record of get a
// disabled default profile, which is also written back when the store was
// built WithCreateMissing. Other failures are collected and returned after
// the sweep; the ids that did load stay loaded. It returns the number of
// profiles read from storage.
func (s *Store) LoadAll(ctx context.Context) (int, error) {
	var errs []error
	n := 0
	for id := int32(0); id < int32(s.max); id++ {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		_, err := s.Load(ctx, id)
		switch {
		case err == nil:
			n++
		case errors.Is(err, seam.ErrNotStored):
			if err := s.addDefault(ctx, id); err != nil {
				errs = append(errs, err)
			}
		default:
			monitoring.Logf("skipping profile %d: %v", id, err)
			errs = append(errs, err)
		}
	}
	return n, errors.Join(errs...)
}

func (s *Store) addDefault(ctx context.Context, id int32) error {
	doc := seam.DefaultDocument(id)
	p, err := doc.Build()
	if err != nil {
		return err
	}
	s.register(p)
	if !s.createMissing || s.sink == nil {
		return nil
	}
	if err := s.sink.WriteProfile(ctx, doc); err != nil {
		return fmt.Errorf("create default profile %d: %w", id, err)
	}
	monitoring.Logf("created default profile %d", id)
	return nil
}
