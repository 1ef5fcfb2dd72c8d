package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/meridian-hq/ABMX/abm"
	"github.com/meridian-hq/ABMX/cache"
	"github.com/meridian-hq/ABMX/config"
	"github.com/meridian-hq/ABMX/crm"
	"github.com/meridian-hq/ABMX/db"
	"github.com/meridian-hq/ABMX/enrich"
	"github.com/meridian-hq/ABMX/errors"
	"github.com/meridian-hq/ABMX/logger"
	"github.com/meridian-hq/ABMX/persist"
	"github.com/meridian-hq/ABMX/scoring"
)

// ScoreCmd scores a single entity without starting the server
var ScoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single entity from the command line",
	Long: `Run one entity through the full pipeline — enrichment, scoring, and
persistence into a throwaway in-memory store — without standing up the
server. Useful for checking what a webhook payload would score.

Examples:
  abmx score --type company --id acme --props hiring=true,funding=true
  abmx score --type deal --id d-1 --props amount=125000 --json`,
	RunE: runScore,
}

var (
	scoreType      string
	scoreID        string
	scoreProps     []string
	scoreRulesPath string
	scoreJSON      bool
)

func init() {
	ScoreCmd.Flags().StringVar(&scoreType, "type", "company", "Entity type (company, contact, deal)")
	ScoreCmd.Flags().StringVar(&scoreID, "id", "", "Entity ID (required)")
	ScoreCmd.Flags().StringSliceVar(&scoreProps, "props", nil, "Entity properties as key=value,key=value")
	ScoreCmd.Flags().StringVar(&scoreRulesPath, "rules", "", "Scoring rules YAML path (default: built-in rules)")
	ScoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "Output the full run result as JSON")
	ScoreCmd.MarkFlagRequired("id")
}

func runScore(cmd *cobra.Command, args []string) error {
	defer logger.Cleanup()

	if crm.ParseEntityType(scoreType) == crm.TypeUnknown {
		return errors.Newf("unknown entity type %q (want company, contact, or deal)", scoreType)
	}

	props, err := parseProps(scoreProps)
	if err != nil {
		return err
	}

	var rules *scoring.RuleSet
	if scoreRulesPath != "" {
		rules, err = scoring.LoadRules(scoreRulesPath)
	} else {
		rules, err = scoring.DefaultRules()
	}
	if err != nil {
		return errors.Wrap(err, "failed to load scoring rules")
	}

	// Throwaway composition: default caches, static provider, in-memory
	// store. The flow is the same one the server runs.
	cfg := scratchConfig()
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	database, err := db.OpenWithMigrations(cfg.Database.Path, logger.ComponentLogger("db"))
	if err != nil {
		return errors.Wrap(err, "failed to open scratch database")
	}
	defer database.Close()

	caches := cache.NewManager(cfg.Cache)
	agent := scoring.NewAgent(rules, caches)
	service, err := abm.NewService(cfg, caches, agent,
		persist.NewStore(database), enrich.NewStaticProvider())
	if err != nil {
		return errors.Wrap(err, "failed to assemble pipeline")
	}

	props["id"] = scoreID
	props["type"] = scoreType
	result := service.Process(context.Background(), crm.Event{
		EventType: scoreType + ".score",
		Data:      props,
	})

	if scoreJSON {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to format result")
		}
		fmt.Println(string(output))
		return nil
	}

	pterm.DefaultSection.Printf("Score for %s %s", scoreType, scoreID)
	if result.Scores == nil {
		pterm.Error.Printf("Run finished with status %s and no score\n", result.Status)
		return errors.Newf("scoring failed: %v", result.NodeErrors)
	}
	rows := pterm.TableData{
		{"Total", fmt.Sprintf("%.3f", result.Scores.TotalScore)},
		{"CRM", fmt.Sprintf("%.3f", result.Scores.CRMScore)},
		{"Industry", fmt.Sprintf("%.3f", result.Scores.IndustryScore)},
	}
	if err := pterm.DefaultTable.WithData(rows).Render(); err != nil {
		return err
	}
	if signals := result.Scores.Components.Signals; len(signals) > 0 {
		pterm.Info.Printf("Fired signals: %s\n", strings.Join(signals, ", "))
	} else {
		pterm.Info.Println("No signals fired; base score only")
	}
	if result.Persistence != nil {
		pterm.Info.Printf("Persisted to %s (status %s)\n",
			result.Persistence.Collection, result.Persistence.Status)
	}
	return nil
}

// scratchConfig is the one-shot composition: an in-memory store and
// default cache tiers, no sweep.
func scratchConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Path: ":memory:"},
		Cache: config.CacheConfig{
			Entity: config.CacheTierConfig{MaxSize: config.DefaultEntityCacheSize, TTLSeconds: config.DefaultEntityCacheTTL},
			Score:  config.CacheTierConfig{MaxSize: config.DefaultScoreCacheSize, TTLSeconds: config.DefaultScoreCacheTTL},
			Prompt: config.CacheTierConfig{MaxSize: config.DefaultPromptCacheSize, TTLSeconds: config.DefaultPromptCacheTTL},
		},
		Scheduler: config.SchedulerConfig{TickSeconds: 1, Workers: 1, StopTimeoutSeconds: 1},
	}
}

// parseProps turns key=value pairs into a property map, converting
// booleans and numbers the way a JSON webhook payload would carry them.
func parseProps(pairs []string) (map[string]any, error) {
	props := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, errors.Newf("invalid property %q (want key=value)", pair)
		}
		switch {
		case value == "true":
			props[key] = true
		case value == "false":
			props[key] = false
		default:
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				props[key] = n
			} else {
				props[key] = value
			}
		}
	}
	return props, nil
}
