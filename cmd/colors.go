package cmd

import (
	"strings"

	"github.com/fatih/color"

	"github.com/adsecurecheck/adaudit/internal/audit"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()

	colorCritical = color.New(color.FgRed, color.Bold).SprintFunc()
)

// colorSeverity renders a severity label in its conventional color.
func colorSeverity(severity audit.Severity) string {
	label := strings.ToUpper(string(severity))
	switch severity {
	case audit.SeverityCritical:
		return colorCritical(label)
	case audit.SeverityHigh:
		return colorError(label)
	case audit.SeverityMedium:
		return colorWarn(label)
	case audit.SeverityLow:
		return colorInfo(label)
	}
	return label
}

func formatStatusWithColor(status string) string {
	switch strings.ToLower(status) {
	case "completed", "ok", "success":
		return colorSuccess(status)
	case "failed", "error":
		return colorError(status)
	case "running", "pending":
		return colorWarn(status)
	default:
		return status
	}
}
