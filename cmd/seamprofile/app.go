package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/seamprofile/internal/config"
	"github.com/banshee-data/seamprofile/internal/monitoring"
	"github.com/banshee-data/seamprofile/internal/profiledb"
	"github.com/banshee-data/seamprofile/internal/profilefs"
	"github.com/banshee-data/seamprofile/internal/profilestore"
	"github.com/banshee-data/seamprofile/internal/timeutil"
)

// App holds the flags shared by every command and the configuration they
// resolve to.
type App struct {
	configPath  string
	backend     string
	profileDir  string
	dbPath      string
	listen      string
	logLevel    string
	maxProfiles int

	cfg   *config.Config
	clock timeutil.Clock
}

// NewApp creates a new seamprofile CLI application
func NewApp() *App {
	return &App{clock: timeutil.RealClock{}}
}

// CreateRootCommand creates and configures the root command
func (app *App) CreateRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "seamprofile",
		Short: "Seam parameter profile store",
		Long: `seamprofile keeps the bank of seam tracking parameter profiles, serves the
current profile over HTTP and manages the profiles kept on disk.`,
		SilenceUsage:      true,
		PersistentPreRunE: app.resolveConfig,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", "", "Path to a JSON config file")
	flags.StringVar(&app.backend, "backend", "", `Storage backend, "json" or "sqlite"`)
	flags.StringVar(&app.profileDir, "profile-dir", "", "Directory of JSON profile files")
	flags.StringVar(&app.dbPath, "db", "", "SQLite profile database")
	flags.StringVar(&app.listen, "listen", "", "HTTP listen address")
	flags.StringVar(&app.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.IntVar(&app.maxProfiles, "max-profiles", 0, "Number of profile ids in use")

	app.addServeCommand(rootCmd)
	app.addProfileCommands(rootCmd)
	app.addDiffCommand(rootCmd)
	app.addMigrateCommands(rootCmd)
	app.addRemoteCommands(rootCmd)
	app.addVersionCommand(rootCmd)

	return rootCmd
}

// resolveConfig loads the config file, if any, and lays the flags the
// user set over it.
func (app *App) resolveConfig(cmd *cobra.Command, _ []string) error {
	cfg := config.DefaultConfig()
	if app.configPath != "" {
		loaded, err := config.LoadConfig(app.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	set := cmd.Flags().Changed
	if set("backend") {
		cfg.Backend = &app.backend
	}
	if set("profile-dir") {
		cfg.ProfileDir = &app.profileDir
	}
	if set("db") {
		cfg.DBPath = &app.dbPath
	}
	if set("listen") {
		cfg.Listen = &app.listen
	}
	if set("log-level") {
		cfg.LogLevel = &app.logLevel
	}
	if set("max-profiles") {
		cfg.MaxProfiles = &app.maxProfiles
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := monitoring.SetLevel(cfg.GetLogLevel()); err != nil {
		return err
	}
	app.cfg = cfg
	return nil
}

// backend is an opened profile store and whatever storage sits behind it.
type backend struct {
	store *profilestore.Store
	dir   *profilefs.Dir
	db    *profiledb.DB
}

func (b *backend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

// openBackend builds an empty store over the configured storage. With
// createMissing false, LoadAll never writes.
func (app *App) openBackend(createMissing bool) (*backend, error) {
	cfg := app.cfg
	opts := []profilestore.Option{
		profilestore.WithMaxProfiles(cfg.GetMaxProfiles()),
		profilestore.WithCreateMissing(createMissing && cfg.GetCreateMissing()),
	}

	b := &backend{}
	switch cfg.GetBackend() {
	case config.BackendSQLite:
		db, err := profiledb.NewDB(cfg.GetDBPath(),
			profiledb.WithClock(app.clock),
			profiledb.WithRevisionLimit(cfg.GetRevisionLimit()))
		if err != nil {
			return nil, err
		}
		b.db = db
		b.store = profilestore.New(db, opts...)
	default:
		b.dir = profilefs.New(cfg.GetProfileDir())
		b.store = profilestore.New(b.dir, opts...)
	}
	return b, nil
}

// requireDB opens the configured SQLite database for the commands that
// only make sense with it.
func (app *App) requireDB() (*profiledb.DB, error) {
	if app.cfg.GetBackend() != config.BackendSQLite {
		return nil, fmt.Errorf("this command needs the %q backend", config.BackendSQLite)
	}
	b, err := app.openBackend(false)
	if err != nil {
		return nil, err
	}
	return b.db, nil
}
