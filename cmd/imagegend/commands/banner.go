package commands

import (
	"fmt"

	"github.com/dreamforge/imagegen/internal/config"
	"github.com/dreamforge/imagegen/version"
)

// printStartupBanner prints the operator-facing startup message.
func printStartupBanner(cfg *config.Config) {
	cyan := "\033[36m"
	green := "\033[32m"
	blue := "\033[34m"
	bold := "\033[1m"
	reset := "\033[0m"

	info := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔═══════════════════════════════════════════════════╗\n")
	fmt.Printf("   ║               i m a g e g e n d                   ║\n")
	fmt.Printf("   ║      worker pool · mode registry · dream loop      ║\n")
	fmt.Printf("   ╚═══════════════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ imagegend ─────────────────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:   %s\n", green, reset, info.Short())
	fmt.Printf("%s│%s Built:     %s\n", green, reset, info.BuildTime)
	fmt.Printf("%s│%s Port:      %d\n", green, reset, cfg.Server.Port)
	fmt.Printf("%s│%s Mode doc:  %s\n", green, reset, cfg.ModeConfig.Path)
	fmt.Printf("%s│%s Metrics:   %v (%s)\n", green, reset, cfg.Metrics.Enabled, cfg.Metrics.Path)
	fmt.Printf("%s└─────────────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%sPress Ctrl+C to stop%s\n\n", blue, reset)
}
