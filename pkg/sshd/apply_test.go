package sshd

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mustSet(t testing.TB, kv ...string) *DirectiveSet {
	t.Helper()
	s := &DirectiveSet{}
	for i := 0; i+1 < len(kv); i += 2 {
		require.NoError(t, s.Set(kv[i], kv[i+1]))
	}
	return s
}

func TestApply(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		set   []string
		want  []string
	}{
		{
			name:  "first occurrence wins",
			lines: []string{"K a", "other", "K b"},
			set:   []string{"K", "c"},
			want:  []string{"K c", "other", "K b"},
		},
		{
			name:  "append when absent",
			lines: []string{"Port 22", "UsePAM yes"},
			set:   []string{"PermitRootLogin", "no"},
			want:  []string{"Port 22", "UsePAM yes", "PermitRootLogin no"},
		},
		{
			name:  "commented lines never match",
			lines: []string{"#PasswordAuthentication yes", "# PasswordAuthentication yes"},
			set:   []string{"PasswordAuthentication", "no"},
			want:  []string{"#PasswordAuthentication yes", "# PasswordAuthentication yes", "PasswordAuthentication no"},
		},
		{
			name:  "prefix keys do not match",
			lines: []string{"PasswordAuthenticationExtra yes"},
			set:   []string{"PasswordAuthentication", "yes"},
			want:  []string{"PasswordAuthenticationExtra yes", "PasswordAuthentication yes"},
		},
		{
			name:  "indented and tab separated",
			lines: []string{"Match User git", "\tPasswordAuthentication\tno"},
			set:   []string{"PasswordAuthentication", "yes"},
			want:  []string{"Match User git", "PasswordAuthentication yes"},
		},
		{
			name:  "bare key matches",
			lines: []string{"PasswordAuthentication"},
			set:   []string{"PasswordAuthentication", "yes"},
			want:  []string{"PasswordAuthentication yes"},
		},
		{
			name:  "matching is case-sensitive",
			lines: []string{"passwordauthentication no"},
			set:   []string{"PasswordAuthentication", "yes"},
			want:  []string{"passwordauthentication no", "PasswordAuthentication yes"},
		},
		{
			name:  "appended in set order",
			lines: nil,
			set:   []string{"PasswordAuthentication", "yes", "PermitRootLogin", "no"},
			want:  []string{"PasswordAuthentication yes", "PermitRootLogin no"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(tt.lines, mustSet(t, tt.set...), "")
			if diff := cmp.Diff(tt.want, got.Lines); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApply_Changes(t *testing.T) {
	lines := []string{"PasswordAuthentication no", "UsePAM yes", "PasswordAuthentication yes"}
	set := mustSet(t, "PermitRootLogin", "no", "PasswordAuthentication", "yes")

	got := Apply(lines, set, "# Added by sshaccess on 2026-01-02T03:04:05Z")

	want := []string{
		"PasswordAuthentication yes",
		"UsePAM yes",
		"PasswordAuthentication yes",
		"# Added by sshaccess on 2026-01-02T03:04:05Z",
		"PermitRootLogin no",
	}
	assert.Empty(t, cmp.Diff(want, got.Lines))
	assert.Equal(t, []DirectiveChange{
		{Key: "PermitRootLogin", Value: "no", Action: ActionAppended, Line: 5},
		{Key: "PasswordAuthentication", Value: "yes", Action: ActionRewritten, Line: 1, Previous: "PasswordAuthentication no"},
	}, got.Changes)
	assert.Equal(t, []Duplicate{{Key: "PasswordAuthentication", Line: 3, Text: "PasswordAuthentication yes"}}, got.Duplicates)
	assert.True(t, got.Modified())
	assert.Equal(t, []string{"PasswordAuthentication no", "UsePAM yes", "PasswordAuthentication yes"}, lines, "input is not modified")
}

func TestApply_Unchanged(t *testing.T) {
	got := Apply([]string{"PermitRootLogin no"}, mustSet(t, "PermitRootLogin", "no"), "# header")
	assert.Equal(t, []string{"PermitRootLogin no"}, got.Lines, "no header without appended keys")
	assert.False(t, got.Modified())
	assert.Equal(t, ActionUnchanged, got.Changes[0].Action)
}

func TestSplitJoinLines(t *testing.T) {
	tests := []struct {
		content string
		lines   []string
		joined  string
	}{
		{"", nil, ""},
		{"a\n", []string{"a"}, "a\n"},
		{"a", []string{"a"}, "a\n"},
		{"a\n\n", []string{"a", ""}, "a\n\n"},
		{"\n", []string{""}, "\n"},
	}
	for _, tt := range tests {
		lines := splitLines(tt.content)
		assert.Equal(t, tt.lines, lines, "split %q", tt.content)
		assert.Equal(t, tt.joined, joinLines(lines), "join %q", tt.content)
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line, key, value string
		ok               bool
	}{
		{"Port 22", "Port", "22", true},
		{"  Ciphers\taes256-ctr,aes128-ctr  ", "Ciphers", "aes256-ctr,aes128-ctr", true},
		{"UsePAM", "UsePAM", "", true},
		{"# Port 22", "", "", false},
		{"   ", "", "", false},
	}
	for _, tt := range tests {
		key, value, ok := ParseLine(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.key, key, tt.line)
		assert.Equal(t, tt.value, value, tt.line)
	}
}

// --- property tests ---

var propertyKeys = []string{"PasswordAuthentication", "PermitRootLogin", "Port", "UsePAM"}

func genLine() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.SampledFrom([]string{
			"PasswordAuthentication yes",
			"PasswordAuthentication no",
			"#PermitRootLogin prohibit-password",
			"  PermitRootLogin   without-password",
			"PasswordAuthenticationExtra no",
			"Port 22",
			"\tUsePAM yes",
			"Match User git",
			"",
		}),
		rapid.StringMatching(`[A-Za-z# \t=-]{0,24}`),
	)
}

func genSet() *rapid.Generator[*DirectiveSet] {
	return rapid.Custom(func(t *rapid.T) *DirectiveSet {
		keys := rapid.SliceOfNDistinct(rapid.SampledFrom(propertyKeys), 1, len(propertyKeys), rapid.ID[string]).Draw(t, "keys")
		s := &DirectiveSet{}
		for _, k := range keys {
			v := rapid.StringMatching(`[a-z0-9-]{1,12}`).Draw(t, "value")
			if err := s.Set(k, v); err != nil {
				t.Fatalf("set %s: %v", k, err)
			}
		}
		return s
	})
}

func nonMatching(lines []string, set *DirectiveSet) []string {
	var out []string
	for _, l := range lines {
		if _, ok := matchSetKey(l, set); !ok {
			out = append(out, l)
		}
	}
	return out
}

func TestApplyProperty_Preservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOf(genLine()).Draw(t, "lines")
		set := genSet().Draw(t, "set")

		got := Apply(lines, set, "")
		if diff := cmp.Diff(nonMatching(lines, set), nonMatching(got.Lines, set)); diff != "" {
			t.Fatalf("unrelated lines changed (-want +got):\n%s", diff)
		}
	})
}

func TestApplyProperty_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOf(genLine()).Draw(t, "lines")
		set := genSet().Draw(t, "set")
		header := rapid.SampledFrom([]string{"", "# Added by sshaccess on 2026-01-02T03:04:05Z"}).Draw(t, "header")

		once := Apply(lines, set, header)
		twice := Apply(once.Lines, set, header)
		if diff := cmp.Diff(once.Lines, twice.Lines); diff != "" {
			t.Fatalf("second patch changed output (-first +second):\n%s", diff)
		}
		if twice.Modified() {
			t.Fatalf("second patch reported modifications: %+v", twice.Changes)
		}
	})
}

func TestApplyProperty_OneLinePerKey(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOf(genLine()).Draw(t, "lines")
		set := genSet().Draw(t, "set")

		got := Apply(lines, set, "")
		for _, d := range set.Directives() {
			want := 1 + countKey(lines, d.Key) - min(countKey(lines, d.Key), 1)
			if n := countKey(got.Lines, d.Key); n != want {
				t.Fatalf("key %s appears %d times, want %d", d.Key, n, want)
			}
			first := firstIndex(got.Lines, d.Key)
			if got.Lines[first] != d.Line() {
				t.Fatalf("first %s line is %q, want %q", d.Key, got.Lines[first], d.Line())
			}
		}
	})
}

func TestApplyProperty_AppendAfterOriginal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOf(genLine()).Draw(t, "lines")
		set := genSet().Draw(t, "set")

		got := Apply(lines, set, "")
		for _, c := range got.Changes {
			if c.Action == ActionAppended && c.Line <= len(lines) {
				t.Fatalf("%s appended at line %d inside the original %d lines", c.Key, c.Line, len(lines))
			}
		}
		if len(got.Lines) < len(lines) {
			t.Fatalf("output shrank from %d to %d lines", len(lines), len(got.Lines))
		}
	})
}

func countKey(lines []string, key string) int {
	n := 0
	for _, l := range lines {
		if k, _, ok := ParseLine(l); ok && k == key {
			n++
		}
	}
	return n
}

func firstIndex(lines []string, key string) int {
	for i, l := range lines {
		if k, _, ok := ParseLine(l); ok && k == key {
			return i
		}
	}
	return -1
}

func TestApply_HeaderPrecedesAppended(t *testing.T) {
	got := Apply([]string{"Port 22"}, mustSet(t, "Port", "2222", "UsePAM", "yes"), "# Added by sshaccess on x")
	assert.Equal(t, []string{"Port 2222", "# Added by sshaccess on x", "UsePAM yes"}, got.Lines)
}
