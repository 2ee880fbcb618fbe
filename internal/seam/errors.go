package seam

import "errors"

var (
	// ErrIndexOutOfRange reports a flat index outside [0,250) or a local
	// index outside its partition. It is a programming error and is never
	// clamped.
	ErrIndexOutOfRange = errors.New("seam: index out of range")

	// ErrLoadFailed reports that a profile could not be read or built from
	// storage. Existing state is untouched when it is returned.
	ErrLoadFailed = errors.New("seam: profile load failed")

	// ErrNotFound reports an id that has no loaded profile, or a request
	// against the current profile while none is active.
	ErrNotFound = errors.New("seam: profile not found")

	// ErrNotStored is wrapped by storage backends when they hold no record
	// for an id. Loaders report it together with ErrLoadFailed.
	ErrNotStored = errors.New("seam: profile not in storage")

	// ErrNoEnableMask is returned when asking for enable bits of the SF
	// partition, which has none.
	ErrNoEnableMask = errors.New("seam: partition has no enable mask")

	// ErrNilProfile is returned when a nil profile is filled or published.
	ErrNilProfile = errors.New("seam: nil profile")
)
