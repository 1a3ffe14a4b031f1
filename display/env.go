package display

import (
	"os"

	"github.com/pterm/pterm"
)

// callerEnv is set to "llm" by agents that read vgate output as plain text
const callerEnv = "VGATE_CALLER"

// assistantEnv are set by coding assistants that capture terminal output
var assistantEnv = []string{"CLAUDECODE", "CURSOR", "GITHUB_COPILOT"}

// ShouldDisableColor reports whether styled output should be turned off
func ShouldDisableColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	if os.Getenv(callerEnv) == "llm" {
		return true
	}
	for _, name := range assistantEnv {
		if os.Getenv(name) != "" {
			return true
		}
	}
	return false
}

// ConfigureColor disables pterm styling when ShouldDisableColor holds
func ConfigureColor() {
	if ShouldDisableColor() {
		pterm.DisableStyling()
	}
}
