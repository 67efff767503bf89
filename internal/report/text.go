package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/adsecurecheck/adaudit/internal/audit"
)

const (
	textWidth         = 80
	maxNarrativeItems = 10
)

// RenderText produces the fixed-width narrative report: scan information,
// the statistics block, then findings grouped critical through low with
// per-item detail lines.
func (p *Pipeline) RenderText(data Data) ([]byte, error) {
	heavy := strings.Repeat("=", textWidth)
	light := strings.Repeat("-", textWidth)

	lines := []string{
		heavy,
		"ACTIVE DIRECTORY SECURITY AUDIT REPORT",
		heavy,
		"",
		"SCAN INFORMATION",
		light,
		fmt.Sprintf("AD server: %s", orNA(data.Server)),
		fmt.Sprintf("Domain: %s", orNA(data.Domain)),
		fmt.Sprintf("Scan date: %s", formatTimestamp(data.StartedAt)),
		fmt.Sprintf("Duration: %s", orNA(data.Duration)),
		fmt.Sprintf("Status: %s", orNA(data.Status)),
	}
	if data.Error != "" {
		lines = append(lines, fmt.Sprintf("Error: %s", data.Error))
	}
	lines = append(lines,
		"",
		"FINDINGS SUMMARY",
		light,
		fmt.Sprintf("Overall risk score: %d/100", data.Stats.RiskScore),
		fmt.Sprintf("Total findings: %d", data.Stats.Total),
		fmt.Sprintf("  Critical: %d", data.Stats.CriticalCount),
		fmt.Sprintf("  High: %d", data.Stats.HighCount),
		fmt.Sprintf("  Medium: %d", data.Stats.MediumCount),
		fmt.Sprintf("  Low: %d", data.Stats.LowCount),
		"",
	)

	groups := groupBySeverity(data.Findings)
	for _, severity := range audit.Severities {
		findings := groups[severity]
		if len(findings) == 0 {
			continue
		}
		name := strings.ToUpper(string(severity))
		lines = append(lines, "", heavy, fmt.Sprintf("%s FINDINGS (%d)", name, len(findings)), heavy)

		for i, finding := range findings {
			lines = append(lines,
				"",
				fmt.Sprintf("[%s #%d] %s", name, i+1, finding.Title),
				light,
				fmt.Sprintf("Description: %s", finding.Description),
			)
			if finding.CVE != "" {
				lines = append(lines, fmt.Sprintf("CVE: %s", finding.CVE))
			}
			if finding.Count() > 0 {
				lines = append(lines, fmt.Sprintf("Affected items: %d", finding.Count()))
			}
			lines = append(lines, "", "Affected details:")
			lines = append(lines, affectedDetails(finding)...)
			lines = append(lines, "", "Recommendation:", fmt.Sprintf("  %s", finding.Recommendation), "")
		}
	}

	lines = append(lines, "", heavy, "END OF REPORT", heavy, "")
	return []byte(strings.Join(lines, "\n")), nil
}

func affectedDetails(finding audit.Finding) []string {
	if finding.Count() == 0 {
		return []string{"  - No specific items identified"}
	}
	details := make([]string, 0, maxNarrativeItems)
	for i, item := range finding.AffectedItems {
		if i == maxNarrativeItems {
			break
		}
		phrases := itemPhrase(item)
		details = append(details, "  - "+phrases[0])
		for _, extra := range phrases[1:] {
			details = append(details, "    "+extra)
		}
	}
	if finding.Count() > maxNarrativeItems {
		details = append(details, fmt.Sprintf("  ... +%d more", finding.Count()-maxNarrativeItems))
	}
	return details
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}
