package logger

// Output controls what categories of information the CLI prints at each
// verbosity level, independent of log severity.
//
//	0 (default) - report, errors, final status
//	1 (-v)      - + stage progress
//	2 (-vv)     - + timing, config values, LLM request summaries
//	3 (-vvv)    - + raw verifier stdout/stderr
//	4 (-vvvv)   - + full prompts and answers

// OutputCategory defines a category of output that can be enabled/disabled
type OutputCategory int

const (
	OutputReport     OutputCategory = iota // Final report
	OutputErrors                           // Errors with hints
	OutputUserStatus                       // Accept/reject status line

	OutputStageProgress // Stage started/finished lines

	OutputTiming    // Per-stage durations
	OutputConfig    // Config values loaded/applied
	OutputLLMCalls  // LLM request summaries

	OutputVerifierOutput // Raw verifier stdout/stderr

	OutputPrompts // Full prompts and answers
)

// categoryLevels maps each output category to its minimum verbosity level
var categoryLevels = map[OutputCategory]int{
	OutputReport:     VerbosityUser,
	OutputErrors:     VerbosityUser,
	OutputUserStatus: VerbosityUser,

	OutputStageProgress: VerbosityInfo,

	OutputTiming:   VerbosityDebug,
	OutputConfig:   VerbosityDebug,
	OutputLLMCalls: VerbosityDebug,

	OutputVerifierOutput: VerbosityTrace,

	OutputPrompts: VerbosityAll,
}

// ShouldOutput returns true if the given category should be shown at the given verbosity
func ShouldOutput(verbosity int, category OutputCategory) bool {
	minLevel, ok := categoryLevels[category]
	if !ok {
		// Unknown category, default to highest verbosity required
		return verbosity >= VerbosityAll
	}
	return verbosity >= minLevel
}
