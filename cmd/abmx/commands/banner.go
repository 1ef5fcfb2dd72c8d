package commands

import (
	"fmt"

	"github.com/meridian-hq/ABMX/logger"
	"github.com/meridian-hq/ABMX/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(verbosity int, dbPath string, port int) {
	// ANSI escape codes
	cyan := "\033[36m"
	green := "\033[32m"
	yellow := "\033[33m"
	blue := "\033[34m"
	white := "\033[37m"
	bgBlack := "\033[40m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔═══════════════════════════════════════════════════╗\n")
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ║    %s%s%s  ███  ██████  ███    ███ ██   ██  %s           ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║    %s%s%s ██ ██ ██   ██ ████  ████  ██ ██   %s           ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║    %s%s%s█████  ██████  ██ ████ ██   ███    %s           ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║    %s%s%s██  ██ ██   ██ ██  ██  ██  ██ ██   %s           ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║    %s%s%s██  ██ ██████  ██      ██ ██   ██  %s           ║\n", white, bold, bgBlack, reset+cyan+bold)
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ║   %s▣%s Webhook  %s⟐%s Sweep  %s◎%s Score  %s⬡%s Persist      ║\n",
		blue, reset+cyan+bold, yellow, reset+cyan+bold, green, reset+cyan+bold, white, reset+cyan+bold)
	fmt.Printf("   ║                                                   ║\n")
	fmt.Printf("   ╚═══════════════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ ABMX Info ─────────────────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:   %s (commit %s)\n", green, reset, versionInfo.Version, versionInfo.Short())
	fmt.Printf("%s│%s Built:     %s\n", green, reset, versionInfo.BuildTime)
	fmt.Printf("%s│%s Verbosity: %s\n", green, reset, logger.LevelName(verbosity))
	fmt.Printf("%s│%s Database:  %s\n", green, reset, dbPath)
	fmt.Printf("%s│%s Webhook:   http://localhost:%d/webhook/crm\n", green, reset, port)
	fmt.Printf("%s└─────────────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%s%s✨ POST CRM events to the webhook to see live scores%s\n", yellow, bold, reset)
	fmt.Printf("%s💡 Press Ctrl+C to stop%s\n\n", blue, reset)
}
