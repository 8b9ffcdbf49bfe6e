package logger

// Output controls what categories of information are shown at each verbosity level.
//
// Unlike log levels (which filter by severity), output categories control
// WHAT types of information are displayed regardless of severity.
//
// Verbosity Levels:
//
//	0 (default) - User-facing output only: results, errors with hints
//	1 (-v)      - + job progress, startup info, session connects
//	2 (-vv)     - + queue/pool timing, config values, queue state, model load timing
//	3 (-vvv)    - + WS frame dispatch, dream tick detail
//	4 (-vvvv)   - + full job params, full WS envelope bodies

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	// Level 0 (default) - Always shown
	OutputResults    OutputCategory = iota // Terminal job results
	OutputErrors                           // Errors with kind and message
	OutputUserStatus                       // Final success/failure status

	// Level 1 (-v) - Informational
	OutputProgress      // Job progress indicators
	OutputStartup       // Startup banners, mode config summary
	OutputSessionStatus // Session connect/disconnect
	OutputOperationInfo // High-level operation summaries

	// Level 2 (-vv) - Detailed
	OutputTiming       // Queue/pool timing (e.g., "job took 420ms")
	OutputConfig       // Config values loaded/applied
	OutputQueueState   // Queue depth / lane snapshot on mutation
	OutputModelLoad    // Mode switch / model load timing

	// Level 3 (-vvv) - Debug
	OutputWSFrames     // WS frame dispatch (type, session)
	OutputDreamTicks   // Dream controller tick detail
	OutputFileRefs     // File-ref store put/take/sweep
	OutputInternalFlow // Internal operation flow (function entry/exit)

	// Level 4 (-vvvv) - Full dump
	OutputJobParams  // Full job params
	OutputWSBody     // Full WS envelope bodies
	OutputDataDump   // Full data structure contents
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	OutputResults:    VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputUserStatus: VerbosityUser,

	OutputProgress:      VerbosityInfo,
	OutputStartup:       VerbosityInfo,
	OutputSessionStatus: VerbosityInfo,
	OutputOperationInfo: VerbosityInfo,

	OutputTiming:     VerbosityDebug,
	OutputConfig:     VerbosityDebug,
	OutputQueueState: VerbosityDebug,
	OutputModelLoad:  VerbosityDebug,

	OutputWSFrames:     VerbosityTrace,
	OutputDreamTicks:   VerbosityTrace,
	OutputFileRefs:      VerbosityTrace,
	OutputInternalFlow: VerbosityTrace,

	OutputJobParams: VerbosityAll,
	OutputWSBody:    VerbosityAll,
	OutputDataDump:  VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}

// categoryNames provides human-readable names for output categories
var categoryNames = map[OutputCategory]string{
	OutputResults:       "results",
	OutputErrors:        "errors",
	OutputUserStatus:    "status",
	OutputProgress:      "progress",
	OutputStartup:       "startup",
	OutputSessionStatus: "session-status",
	OutputOperationInfo: "operation-info",
	OutputTiming:        "timing",
	OutputConfig:        "config",
	OutputQueueState:    "queue-state",
	OutputModelLoad:     "model-load",
	OutputWSFrames:      "ws-frames",
	OutputDreamTicks:    "dream-ticks",
	OutputFileRefs:      "file-refs",
	OutputInternalFlow:  "internal-flow",
	OutputJobParams:     "job-params",
	OutputWSBody:        "ws-body",
	OutputDataDump:      "data-dump",
}

// CategoryName returns the human-readable name for an output category
func CategoryName(category OutputCategory) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return "unknown"
}

// EnabledCategories returns all output categories enabled at the given verbosity
func EnabledCategories(verbosity int) []OutputCategory {
	var enabled []OutputCategory
	for cat, minLevel := range categoryLevels {
		if verbosity >= minLevel {
			enabled = append(enabled, cat)
		}
	}
	return enabled
}

// VerbosityDescription returns a description of what's shown at each level
func VerbosityDescription(verbosity int) string {
	switch verbosity {
	case VerbosityUser:
		return "results and errors only"
	case VerbosityInfo:
		return "results, errors, progress, startup"
	case VerbosityDebug:
		return "above + queue state, timing, config"
	case VerbosityTrace:
		return "above + WS frame dispatch, dream ticks"
	case VerbosityAll:
		return "above + full job params, full WS bodies"
	default:
		if verbosity > VerbosityAll {
			return "maximum verbosity"
		}
		return "unknown verbosity level"
	}
}

// Timing helpers

// SlowThresholdMS is the threshold in milliseconds above which timing is always shown
const SlowThresholdMS = 100

// ShouldShowTiming returns true if timing info should be displayed.
// Shows if: verbosity >= 2 (-vv) OR operation exceeded slow threshold.
func ShouldShowTiming(verbosity int, durationMS int64) bool {
	if durationMS >= SlowThresholdMS {
		return true
	}
	return ShouldOutput(verbosity, OutputTiming)
}

// ShouldShowTimingAlways returns true if timing should always be shown (slow operation)
func ShouldShowTimingAlways(durationMS int64) bool {
	return durationMS >= SlowThresholdMS
}
