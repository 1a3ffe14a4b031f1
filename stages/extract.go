package stages

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/vgate/ai/agent"
	"github.com/teranos/vgate/stage"
)

// Values are taken from a structured answer field first, then from keywords
// in the answer text, then from Defaults.

var qualityScorePattern = regexp.MustCompile(`0\.\d+|1\.0`)

var mitigationKeywords = []string{"mitigation", "action required", "immediate attention", "high risk"}

func qualityScore(ans *agent.Answer, def float64) float64 {
	if f, ok := ans.Float("quality_score"); ok && f >= 0 && f <= 1 {
		return f
	}
	if strings.Contains(strings.ToLower(ans.Text), "quality_score") {
		if m := qualityScorePattern.FindString(ans.Text); m != "" {
			if f, err := strconv.ParseFloat(m, 64); err == nil {
				return f
			}
		}
	}
	return def
}

func securityLevel(ans *agent.Answer, def stage.Label) stage.Label {
	if s, ok := ans.String("security_level"); ok {
		if tier, ok := parseTier(s); ok {
			return tier
		}
	}
	text := strings.ToLower(ans.Text)
	switch {
	case strings.Contains(text, "high") && strings.Contains(text, "security"):
		return stage.High
	case strings.Contains(text, "medium") || strings.Contains(text, "moderate"):
		return stage.Medium
	case strings.Contains(text, "low"):
		return stage.Low
	}
	return def
}

func riskLevel(ans *agent.Answer, def stage.Label) stage.Label {
	if s, ok := ans.String("risk_level"); ok {
		if tier, ok := parseTier(s); ok {
			return tier
		}
	}
	text := strings.ToLower(ans.Text)
	switch {
	case strings.Contains(text, "high"):
		return stage.High
	case strings.Contains(text, "medium"):
		return stage.Medium
	case strings.Contains(text, "low"):
		return stage.Low
	}
	return def
}

func mitigationRequired(ans *agent.Answer) bool {
	if b, ok := ans.Bool("mitigation_required"); ok {
		return b
	}
	text := strings.ToLower(ans.Text)
	for _, kw := range mitigationKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
