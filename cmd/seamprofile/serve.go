package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/seamprofile/internal/api"
	"github.com/banshee-data/seamprofile/internal/monitoring"
	"github.com/banshee-data/seamprofile/internal/profilestore"
)

func (app *App) addServeCommand(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Load every profile and serve the store over HTTP",
		Long: `Load every stored profile, make the configured default profile current and
serve the profile API until interrupted. With the sqlite backend the debug
routes (tailsql, backup) are mounted under /debug/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ln, err := net.Listen("tcp", app.cfg.GetListen())
			if err != nil {
				return err
			}
			return app.serve(ctx, ln)
		},
	}
	rootCmd.AddCommand(serveCmd)
}

// startStore loads every profile and makes the default profile current.
// Profiles that fail to load are logged and left out.
func (app *App) startStore(ctx context.Context, b *backend) {
	n, err := b.store.LoadAll(ctx)
	if err != nil {
		monitoring.Logf("some profiles failed to load: %v", err)
	}
	monitoring.Logf("loaded %d stored profiles from %s backend", n, app.cfg.GetBackend())

	id := app.cfg.GetDefaultProfileID()
	if err := b.store.Switch(id); err != nil {
		monitoring.Logf("no current profile: %v", err)
	}
	profilestore.SetDefault(b.store)
}

// serve runs the HTTP server on ln until ctx is done, then flushes the
// loaded profiles when autosave is on.
func (app *App) serve(ctx context.Context, ln net.Listener) error {
	b, err := app.openBackend(true)
	if err != nil {
		ln.Close()
		return err
	}
	defer b.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.startStore(ctx, b)

	var opts []api.Option
	if b.db != nil {
		opts = append(opts, api.WithHistory(b.db))
	}
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", api.NewServer(b.store, opts...).ServeMux()))
	if b.db != nil {
		if err := b.db.AttachAdminRoutes(mux); err != nil {
			ln.Close()
			return fmt.Errorf("attach admin routes: %w", err)
		}
	}

	var wg sync.WaitGroup

	if d := app.cfg.GetAutosaveInterval(); d > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.store.RunAutosave(ctx, app.clock.NewTicker(d))
			monitoring.Logf("autosave routine stopped")
		}()
	}

	server := &http.Server{
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		monitoring.Logf("serving profiles on %s", ln.Addr())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			monitoring.Logf("HTTP server failed: %v", err)
			cancel()
			wg.Wait()
			return err
		}
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}

	wg.Wait()
	monitoring.Logf("graceful shutdown complete, current profile %d", b.store.CurrentID())
	return nil
}
