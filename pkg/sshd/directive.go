// pkg/sshd/directive.go

// Package sshd patches line-oriented "Key value" configuration files such as
// /etc/ssh/sshd_config. Every write is preceded by a timestamped backup and
// leaves unrelated lines untouched.
package sshd

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
)

// Directive is one "Key value" assignment.
type Directive struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Line renders the directive as it is written to the file.
func (d Directive) Line() string {
	if d.Value == "" {
		return d.Key
	}
	return d.Key + " " + d.Value
}

// DirectiveSet is an insertion-ordered set of directives with unique keys.
type DirectiveSet struct {
	order  []string
	values map[string]string
}

// NewDirectiveSet builds a set from directives in order. A key given twice
// keeps its first position and its last value.
func NewDirectiveSet(directives ...Directive) (*DirectiveSet, error) {
	s := &DirectiveSet{values: make(map[string]string)}
	for _, d := range directives {
		if err := s.Set(d.Key, d.Value); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ParseAssignments builds a set from "Key=Value" strings.
func ParseAssignments(assignments []string) (*DirectiveSet, error) {
	s := &DirectiveSet{values: make(map[string]string)}
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok {
			return nil, eos_err.NewInvalidValueError(
				fmt.Sprintf("invalid assignment %q: expected Key=Value", a),
				"Pass directives as --set PasswordAuthentication=yes",
			)
		}
		if err := s.Set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Set assigns value to key. An existing key keeps its position. A
// PermitRootLogin value sshd does not accept is stored as "no".
func (s *DirectiveSet) Set(key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(key, value); err != nil {
		return err
	}
	if key == KeyPermitRootLogin {
		value = NormalizeRootLogin(value)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	if _, ok := s.values[key]; !ok {
		s.order = append(s.order, key)
	}
	s.values[key] = value
	return nil
}

// Get returns the value assigned to key.
func (s *DirectiveSet) Get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (s *DirectiveSet) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Directives returns the assignments in insertion order.
func (s *DirectiveSet) Directives() []Directive {
	if s == nil {
		return nil
	}
	out := make([]Directive, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, Directive{Key: k, Value: s.values[k]})
	}
	return out
}

// Len returns the number of keys.
func (s *DirectiveSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Validate re-checks every key and value. Sets built with Set are always
// valid; this guards zero values assembled by hand.
func (s *DirectiveSet) Validate() error {
	if s == nil || len(s.order) == 0 {
		return eos_err.NewInvalidValueError("no directives to apply")
	}
	for _, k := range s.order {
		if err := validateKey(k); err != nil {
			return err
		}
		if err := validateValue(k, s.values[k]); err != nil {
			return err
		}
	}
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return eos_err.NewInvalidValueError("directive key must not be empty")
	}
	if strings.ContainsAny(key, " \t\r\n#") {
		return eos_err.NewInvalidValueError(
			fmt.Sprintf("invalid directive key %q: keys cannot contain whitespace or '#'", key),
		)
	}
	return nil
}

func validateValue(key, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return eos_err.NewInvalidValueError(
			fmt.Sprintf("invalid value for %s: line breaks are not allowed", key),
			"Each directive value must fit on a single line",
		)
	}
	return nil
}
