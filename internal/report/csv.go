package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/adsecurecheck/adaudit/internal/audit"
)

const maxCSVItems = 5

var csvHeader = []string{"Severity", "Title", "Description", "CVE", "Count", "Affected", "Recommendation"}

// RenderCSV produces the tabular export: one row per finding, ordered
// critical through low, affected items collapsed into a single cell.
func (p *Pipeline) RenderCSV(data Data) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	groups := groupBySeverity(data.Findings)
	for _, severity := range audit.Severities {
		for _, finding := range groups[severity] {
			row := []string{
				string(finding.Severity),
				finding.Title,
				finding.Description,
				finding.CVE,
				strconv.Itoa(finding.Count()),
				itemSummary(finding.AffectedItems, maxCSVItems),
				finding.Recommendation,
			}
			if err := w.Write(row); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
