package profilestore

import (
	"context"

	"github.com/banshee-data/seamprofile/internal/monitoring"
	"github.com/banshee-data/seamprofile/internal/timeutil"
)

// RunAutosave calls SaveAll on every tick until ctx is done, then saves
// once more and stops the ticker. Save failures are logged and retried on
// the next tick.
func (s *Store) RunAutosave(ctx context.Context, ticker timeutil.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// ctx is already cancelled; the final flush must not inherit it
			if err := s.SaveAll(context.WithoutCancel(ctx)); err != nil {
				monitoring.Logf("autosave: final save: %v", err)
			}
			return
		case <-ticker.C():
			if err := s.SaveAll(ctx); err != nil {
				monitoring.Logf("autosave: %v", err)
			}
		}
	}
}
