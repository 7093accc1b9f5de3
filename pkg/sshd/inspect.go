// pkg/sshd/inspect.go

package sshd

import (
	"os"

	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Setting is the effective value of one key: its first active occurrence.
type Setting struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
	Found bool   `yaml:"found"`
	Line  int    `yaml:"line,omitempty"`
}

// Inspect reports the first active occurrence of each key in the file at
// path. With no keys it reports every directive in file order.
func Inspect(rc *eos_io.RuntimeContext, path string, keys ...string) ([]Setting, error) {
	ctx, span := telemetry.Start(rc.Ctx, "sshd.Inspect", attribute.String("path", path))
	defer span.End()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eos_err.ClassifyFileError(err, path, "read")
	}
	settings := scan(splitLines(string(data)), keys)
	otelzap.Ctx(ctx).Debug("Inspected config",
		zap.String("path", path),
		zap.Int("settings", len(settings)))
	return settings, nil
}

func scan(lines []string, keys []string) []Setting {
	first := make(map[string]Setting)
	var order []string
	for i, line := range lines {
		key, value, ok := ParseLine(line)
		if !ok {
			continue
		}
		if _, dup := first[key]; dup {
			continue
		}
		first[key] = Setting{Key: key, Value: value, Found: true, Line: i + 1}
		order = append(order, key)
	}

	if len(keys) == 0 {
		out := make([]Setting, 0, len(order))
		for _, k := range order {
			out = append(out, first[k])
		}
		return out
	}
	out := make([]Setting, 0, len(keys))
	for _, k := range keys {
		if s, ok := first[k]; ok {
			out = append(out, s)
			continue
		}
		out = append(out, Setting{Key: k})
	}
	return out
}
