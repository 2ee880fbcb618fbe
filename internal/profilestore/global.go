package profilestore

import (
	"fmt"
	"sync/atomic"

	"github.com/banshee-data/seamprofile/internal/seam"
)

var defaultStore atomic.Pointer[Store]

// SetDefault installs s as the process-wide store used by the package
// level functions below.
func SetDefault(s *Store) {
	defaultStore.Store(s)
}

// Default returns the process-wide store, or nil before SetDefault.
func Default() *Store {
	return defaultStore.Load()
}

func errNoDefault() error {
	return fmt.Errorf("%w: no process profile store installed", seam.ErrNotFound)
}

// Current returns the current profile of the process-wide store.
func Current() *seam.Profile {
	if s := Default(); s != nil {
		return s.Current()
	}
	return nil
}

// CurrentID returns the current profile id of the process-wide store, or
// -1.
func CurrentID() int32 {
	if s := Default(); s != nil {
		return s.CurrentID()
	}
	return -1
}

// Switch calls Switch on the process-wide store.
func Switch(id int32) error {
	s := Default()
	if s == nil {
		return errNoDefault()
	}
	return s.Switch(id)
}

// Fill calls Fill on the process-wide store.
func Fill(src *seam.Profile) error {
	s := Default()
	if s == nil {
		return errNoDefault()
	}
	return s.Fill(src)
}

// SetCurrent calls SetCurrent on the process-wide store.
func SetCurrent(p *seam.Profile) error {
	s := Default()
	if s == nil {
		return errNoDefault()
	}
	return s.SetCurrent(p)
}
