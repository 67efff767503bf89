package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/adsecurecheck/adaudit/internal/audit"
)

//go:embed templates/report.html
var htmlTemplateFS embed.FS

var (
	htmlTemplateFuncs = template.FuncMap{
		"add":         func(a, b int) int { return a + b },
		"upper":       strings.ToUpper,
		"lower":       strings.ToLower,
		"formatTime":  formatTimestamp,
		"orNA":        orNA,
		"itemPhrases": itemPhrase,
		"riskClass":   riskClass,
	}

	htmlReportTemplate = template.Must(
		template.New("report.html").Funcs(htmlTemplateFuncs).ParseFS(htmlTemplateFS, "templates/report.html"),
	)
)

// severityGroup is one severity section of the HTML report.
type severityGroup struct {
	Severity audit.Severity
	Findings []audit.Finding
}

// htmlTemplateData is the template input for the HTML renderer.
type htmlTemplateData struct {
	Data
	Groups      []severityGroup
	GeneratedAt time.Time
}

// RenderHTML produces the styled HTML document. The document is well-formed
// even when the scan produced no findings.
func (p *Pipeline) RenderHTML(data Data) ([]byte, error) {
	byGroup := groupBySeverity(data.Findings)
	groups := make([]severityGroup, 0, len(audit.Severities))
	for _, severity := range audit.Severities {
		if findings := byGroup[severity]; len(findings) > 0 {
			groups = append(groups, severityGroup{Severity: severity, Findings: findings})
		}
	}

	var buf bytes.Buffer
	err := htmlReportTemplate.Execute(&buf, htmlTemplateData{
		Data:        data,
		Groups:      groups,
		GeneratedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("execute html template: %w", err)
	}
	return buf.Bytes(), nil
}

// riskClass maps the overall risk score to a CSS class bucket.
func riskClass(score int) string {
	switch {
	case score >= 75:
		return "risk-critical"
	case score >= 50:
		return "risk-high"
	case score >= 25:
		return "risk-medium"
	default:
		return "risk-low"
	}
}
