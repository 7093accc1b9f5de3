// pkg/sshd/apply.go

package sshd

import (
	"strings"
)

// Action describes what happened to one directive during a patch.
type Action string

const (
	ActionRewritten Action = "rewritten"
	ActionAppended  Action = "appended"
	// ActionUnchanged marks a first occurrence that already read "Key value".
	ActionUnchanged Action = "unchanged"
)

// DirectiveChange records the outcome for one key of the set.
type DirectiveChange struct {
	Key    string `yaml:"key"`
	Value  string `yaml:"value"`
	Action Action `yaml:"action"`
	// Line is 1-based in the patched output.
	Line     int    `yaml:"line"`
	Previous string `yaml:"previous,omitempty"`
}

// Duplicate is a later occurrence of a key that was left as is.
type Duplicate struct {
	Key  string `yaml:"key"`
	Line int    `yaml:"line"`
	Text string `yaml:"text"`
}

// Applied is the result of merging a DirectiveSet into a document.
type Applied struct {
	Lines      []string
	Changes    []DirectiveChange
	Duplicates []Duplicate
}

// Modified reports whether the output differs from the input.
func (a *Applied) Modified() bool {
	for _, c := range a.Changes {
		if c.Action != ActionUnchanged {
			return true
		}
	}
	return false
}

// Apply merges set into lines without side effects. The first line matching
// each key is replaced by "Key value"; later matches and every other line pass
// through in order. Keys with no match are appended in set order, preceded by
// header when header is non-empty. The input slice is not modified.
func Apply(lines []string, set *DirectiveSet, header string) *Applied {
	out := make([]string, 0, len(lines)+set.Len()+1)
	res := &Applied{}
	seen := make(map[string]bool, set.Len())
	changeIdx := make(map[string]int, set.Len())

	for i, line := range lines {
		key, ok := matchSetKey(line, set)
		if !ok {
			out = append(out, line)
			continue
		}
		if seen[key] {
			res.Duplicates = append(res.Duplicates, Duplicate{Key: key, Line: i + 1, Text: line})
			out = append(out, line)
			continue
		}
		seen[key] = true

		value, _ := set.Get(key)
		next := Directive{Key: key, Value: value}.Line()
		action := ActionRewritten
		if line == next {
			action = ActionUnchanged
		}
		out = append(out, next)
		changeIdx[key] = len(res.Changes)
		res.Changes = append(res.Changes, DirectiveChange{
			Key:      key,
			Value:    value,
			Action:   action,
			Line:     len(out),
			Previous: line,
		})
	}

	var missing []Directive
	for _, d := range set.Directives() {
		if !seen[d.Key] {
			missing = append(missing, d)
		}
	}
	if len(missing) > 0 && header != "" {
		out = append(out, header)
	}
	for _, d := range missing {
		out = append(out, d.Line())
		changeIdx[d.Key] = len(res.Changes)
		res.Changes = append(res.Changes, DirectiveChange{
			Key:    d.Key,
			Value:  d.Value,
			Action: ActionAppended,
			Line:   len(out),
		})
	}

	// report in set order
	ordered := make([]DirectiveChange, 0, len(res.Changes))
	for _, k := range set.Keys() {
		ordered = append(ordered, res.Changes[changeIdx[k]])
	}
	res.Changes = ordered
	res.Lines = out
	return res
}

// matchSetKey returns the set key assigned by line. The trimmed line must
// start with the key followed by a space, a tab or the end of the line;
// comments never match and matching is case-sensitive.
func matchSetKey(line string, set *DirectiveSet) (string, bool) {
	key, _, ok := ParseLine(line)
	if !ok {
		return "", false
	}
	if _, ok := set.Get(key); !ok {
		return "", false
	}
	return key, true
}

// ParseLine splits an active directive line into key and value. Blank lines
// and comments report false.
func ParseLine(line string) (key, value string, ok bool) {
	t := strings.TrimSpace(line)
	if t == "" || strings.HasPrefix(t, "#") {
		return "", "", false
	}
	i := strings.IndexAny(t, " \t")
	if i < 0 {
		return t, "", true
	}
	return t[:i], strings.TrimSpace(t[i+1:]), true
}

// splitLines splits on "\n"; a single trailing newline does not yield an
// extra empty line and empty content yields no lines.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
