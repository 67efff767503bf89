package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/adsecurecheck/adaudit/internal/audit"
)

// severityFill returns the RGB fill used for a severity heading band.
func severityFill(severity audit.Severity) (int, int, int) {
	switch severity {
	case audit.SeverityCritical:
		return 185, 28, 28
	case audit.SeverityHigh:
		return 194, 65, 12
	case audit.SeverityMedium:
		return 161, 98, 7
	default:
		return 21, 128, 61
	}
}

// RenderPDF produces the printable PDF export. Layout mirrors the narrative
// text report: scan information, summary counters, then findings grouped by
// severity.
func (p *Pipeline) RenderPDF(data Data) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Active Directory Security Audit Report", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("AD server: %s", orNA(data.Server)), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Domain: %s", orNA(data.Domain)), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Scan date: %s", formatTimestamp(data.StartedAt)), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Duration: %s", orNA(data.Duration)), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Status: %s", orNA(data.Status)), "", 1, "", false, 0, "")
	if data.Error != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Error: %s", data.Error), "", 1, "", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, "Findings Summary", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Overall risk score: %d/100", data.Stats.RiskScore), "", 1, "", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Total: %d | Critical: %d | High: %d | Medium: %d | Low: %d",
		data.Stats.Total, data.Stats.CriticalCount, data.Stats.HighCount,
		data.Stats.MediumCount, data.Stats.LowCount), "", 1, "", false, 0, "")
	pdf.Ln(4)

	if len(data.Findings) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(0, 6, "No findings were produced by this scan.", "", 1, "", false, 0, "")
	}

	groups := groupBySeverity(data.Findings)
	for _, severity := range audit.Severities {
		findings := groups[severity]
		if len(findings) == 0 {
			continue
		}

		r, g, b := severityFill(severity)
		pdf.SetFillColor(r, g, b)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, fmt.Sprintf("  %s FINDINGS (%d)", strings.ToUpper(string(severity)), len(findings)), "", 1, "", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)

		for i, finding := range findings {
			pdf.SetFont("Arial", "B", 10)
			pdf.MultiCell(0, 6, fmt.Sprintf("%d. %s", i+1, finding.Title), "", "", false)

			pdf.SetFont("Arial", "", 9)
			pdf.MultiCell(0, 5, finding.Description, "", "", false)
			if finding.CVE != "" {
				pdf.MultiCell(0, 5, fmt.Sprintf("CVE: %s", finding.CVE), "", "", false)
			}
			if finding.Count() > 0 {
				pdf.MultiCell(0, 5, fmt.Sprintf("Affected items (%d):", finding.Count()), "", "", false)
				for j, item := range finding.AffectedItems {
					if j == maxNarrativeItems {
						pdf.MultiCell(0, 5, fmt.Sprintf("   ... +%d more", finding.Count()-maxNarrativeItems), "", "", false)
						break
					}
					pdf.MultiCell(0, 5, fmt.Sprintf("   - %s", strings.Join(itemPhrase(item), " ")), "", "", false)
				}
			}
			if finding.Recommendation != "" {
				pdf.SetFont("Arial", "I", 9)
				pdf.MultiCell(0, 5, fmt.Sprintf("Recommendation: %s", finding.Recommendation), "", "", false)
			}
			pdf.Ln(3)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
