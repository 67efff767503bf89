package cmd

import (
	"strings"
	"testing"

	"github.com/adsecurecheck/adaudit/internal/audit"
)

func TestColorSeverityLabels(t *testing.T) {
	for _, severity := range audit.Severities {
		got := colorSeverity(severity)
		want := strings.ToUpper(string(severity))
		// Color escapes may wrap the label depending on the terminal.
		if !strings.Contains(got, want) {
			t.Fatalf("colorSeverity(%s) = %q, missing %q", severity, got, want)
		}
	}
}

func TestFormatStatusWithColor(t *testing.T) {
	for _, status := range []string{"completed", "failed", "running", "pending", "unknown"} {
		if got := formatStatusWithColor(status); !strings.Contains(got, status) {
			t.Fatalf("formatStatusWithColor(%s) = %q", status, got)
		}
	}
}
