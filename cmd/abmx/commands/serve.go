package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/meridian-hq/ABMX/abm"
	"github.com/meridian-hq/ABMX/cache"
	"github.com/meridian-hq/ABMX/config"
	"github.com/meridian-hq/ABMX/db"
	"github.com/meridian-hq/ABMX/enrich"
	"github.com/meridian-hq/ABMX/errors"
	"github.com/meridian-hq/ABMX/logger"
	"github.com/meridian-hq/ABMX/persist"
	"github.com/meridian-hq/ABMX/schedule"
	"github.com/meridian-hq/ABMX/scoring"
	"github.com/meridian-hq/ABMX/server"
)

// ServeCmd starts the ABMX webhook server and scheduler
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the ABMX server: CRM webhook, scheduler, and scoring pipeline",
	Long: `Launch the ABMX server. CRM events posted to /webhook/crm run through
the enrichment and scoring pipeline; the periodic sweep re-scores recently
persisted records through the same flow. Admin endpoints expose cache,
scheduler, and scoring-weight controls, and /api/events streams run results
over websocket.`,
	RunE: runServe,
}

var (
	serveConfigPath string
	serveDBPath     string
	servePort       int
	serveRulesPath  string
)

func init() {
	ServeCmd.Flags().StringVar(&serveConfigPath, "config", "", "Config file path (overrides discovery)")
	ServeCmd.Flags().StringVar(&serveDBPath, "db-path", "", "Custom database path (overrides config)")
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides config)")
	ServeCmd.Flags().StringVar(&serveRulesPath, "rules", "", "Scoring rules YAML path (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Default to Info for the server so startup progress is visible
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 {
		verbosity = 1
		logger.SetVerbosity(verbosity)
	}
	defer logger.Cleanup()

	var cfg *config.Config
	var err error
	if serveConfigPath != "" {
		cfg, err = config.LoadFromFile(serveConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	// Database path priority: --db-path flag > DB_PATH env > config
	dbPath := serveDBPath
	if dbPath == "" {
		if dbPath, err = config.GetDatabasePath(); err != nil || dbPath == "" {
			dbPath = "abmx.db"
		}
	}

	database, err := db.OpenWithMigrations(dbPath, logger.ComponentLogger("db"))
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	caches := cache.NewManager(cfg.Cache)

	rulesPath := serveRulesPath
	if rulesPath == "" {
		rulesPath = cfg.Scoring.RulesPath
	}
	var rules *scoring.RuleSet
	if rulesPath != "" {
		rules, err = scoring.LoadRules(rulesPath)
	} else {
		rules, err = scoring.DefaultRules()
	}
	if err != nil {
		return errors.Wrap(err, "failed to load scoring rules")
	}
	if cfg.Scoring.BaseScore > 0 {
		rules = rules.WithBaseScore(cfg.Scoring.BaseScore)
	}
	agent := scoring.NewAgent(rules, caches)

	if cfg.Scoring.WatchRules && rulesPath != "" {
		watcher, err := scoring.NewRuleWatcher(rulesPath, agent)
		if err != nil {
			return errors.Wrap(err, "failed to watch scoring rules")
		}
		watcher.Start()
		defer watcher.Stop()
	}

	provider, err := enrich.NewProvider(cfg.Provider)
	if err != nil {
		return errors.Wrap(err, "failed to build CRM provider")
	}

	store := persist.NewStore(database)
	service, err := abm.NewService(cfg, caches, agent, store, provider)
	if err != nil {
		return errors.Wrap(err, "failed to assemble pipeline")
	}

	scheduler := schedule.New(cfg.Scheduler, logger.ComponentLogger("schedule"))
	if service.RegisterSweep(scheduler) {
		pterm.Info.Printf("Sweep registered: every %s, batch %d\n",
			cfg.Sweep.Interval(), cfg.Sweep.BatchSize)
	}
	scheduler.Start()

	srv := server.New(service, caches, scheduler, agent)

	port := servePort
	if port == 0 {
		port = server.DefaultPort(cfg.Server)
	}

	printStartupBanner(verbosity, dbPath, port)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(port)
	}()

	// GRACE: wait for shutdown signal (Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		scheduler.Stop()
		return errors.Wrap(err, "server failed to start")
	case <-sigChan:
		// First Ctrl+C - graceful shutdown
		pterm.Info.Println("\nShutting down gracefully (press Ctrl+C again to force)...")

		shutdownDone := make(chan error, 1)
		go func() {
			err := srv.Stop()
			if stopErr := scheduler.Stop(); stopErr != nil && err == nil {
				err = stopErr
			}
			shutdownDone <- err
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			// Second Ctrl+C - force immediate exit
			pterm.Warning.Println("\nForce shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}
