// pkg/eos_err/summary.go

package eos_err

import (
	"strings"
)

var summaryKeywords = []string{"error", "failed", "fatal", "cannot", "denied", "not found", "unable", "invalid"}

// ExtractSummary picks up to maxCandidates lines from command output that look
// like diagnostics. When no line matches, the last non-empty line is used.
func ExtractSummary(output string, maxCandidates int) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return ""
	}
	if maxCandidates <= 0 {
		maxCandidates = 1
	}

	var candidates []string
	var last string
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		last = line
		lower := strings.ToLower(line)
		for _, kw := range summaryKeywords {
			if strings.Contains(lower, kw) {
				candidates = append(candidates, line)
				break
			}
		}
		if len(candidates) == maxCandidates {
			break
		}
	}

	if len(candidates) == 0 {
		return last
	}
	return strings.Join(candidates, " - ")
}
