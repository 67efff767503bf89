// Package report renders a completed scan into its durable artifact
// representations: narrative text, CSV, a styled HTML document and a PDF
// export. Renderers are independent and individually retryable; every one
// of them tolerates an empty finding set and absent optional fields.
package report

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adsecurecheck/adaudit/internal/audit"
	"github.com/adsecurecheck/adaudit/internal/directory"
	sharedErrors "github.com/adsecurecheck/adaudit/internal/shared/errors"
)

// Format identifies one artifact representation.
type Format string

const (
	FormatText Format = "txt"
	FormatCSV  Format = "csv"
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// ArtifactFormats are the representations persisted for every scan. PDF is
// rendered on demand by the CLI, not stored per scan.
var ArtifactFormats = []Format{FormatText, FormatCSV, FormatHTML}

// Data is the renderer input: a flattened view of a terminal scan.
type Data struct {
	ScanID      string
	Server      string
	Domain      string
	DomainInfo  directory.DomainInfo
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    string
	Status      string
	Error       string
	Findings    []audit.Finding
	Stats       audit.Statistics
}

// ArtifactName builds the canonical artifact filename:
// report_<domain with dots as underscores>_<YYYYMMDD_HHMMSS>.<ext>.
func ArtifactName(domain string, at time.Time, format Format) string {
	return fmt.Sprintf("report_%s_%s.%s",
		strings.ReplaceAll(domain, ".", "_"),
		at.Format("20060102_150405"),
		format)
}

// Pipeline renders scan data into each artifact format.
type Pipeline struct {
	Logger *zap.SugaredLogger
}

// NewPipeline returns a report pipeline logging through the given logger.
func NewPipeline(logger *zap.SugaredLogger) *Pipeline {
	return &Pipeline{Logger: logger}
}

// Render produces one representation.
func (p *Pipeline) Render(data Data, format Format) ([]byte, error) {
	switch format {
	case FormatText:
		return p.RenderText(data)
	case FormatCSV:
		return p.RenderCSV(data)
	case FormatHTML:
		return p.RenderHTML(data)
	case FormatPDF:
		return p.RenderPDF(data)
	}
	return nil, fmt.Errorf("%w: %q", sharedErrors.ErrUnknownFormat, format)
}

// RenderAll produces every persisted representation. A failing renderer is
// logged and skipped so the remaining formats still materialize.
func (p *Pipeline) RenderAll(data Data) map[Format][]byte {
	artifacts := make(map[Format][]byte, len(ArtifactFormats))
	for _, format := range ArtifactFormats {
		payload, err := p.Render(data, format)
		if err != nil {
			p.Logger.Errorw("report rendering failed", "format", format, "scan", data.ScanID, "error", err)
			continue
		}
		artifacts[format] = payload
	}
	return artifacts
}

// groupBySeverity partitions findings by severity, preserving discovery
// order within each group.
func groupBySeverity(findings []audit.Finding) map[audit.Severity][]audit.Finding {
	groups := make(map[audit.Severity][]audit.Finding, len(audit.Severities))
	for _, f := range findings {
		groups[f.Severity] = append(groups[f.Severity], f)
	}
	return groups
}

// itemPhrase renders one affected item as human-readable detail lines. The
// switch is exhaustive over the AffectedItem variants; anything new falls
// back to its Summary.
func itemPhrase(item audit.AffectedItem) []string {
	switch v := item.(type) {
	case audit.UserStatus:
		switch {
		case v.LastLogon != "":
			return []string{fmt.Sprintf("User: %s | Last logon: %s | Status: %s", v.Username, v.LastLogon, v.Status)}
		case v.Status != "":
			return []string{fmt.Sprintf("User: %s | Status: %s", v.Username, v.Status)}
		default:
			return []string{fmt.Sprintf("User: %s", v.Username)}
		}
	case audit.PrivilegedMember:
		name := v.Username
		if name == "" {
			name = directory.ExtractCN(v.UserDN)
		}
		return []string{fmt.Sprintf("User: %s | Privileged group: %s", name, v.Group)}
	case audit.PolicyGap:
		return []string{
			fmt.Sprintf("Policy: %s", v.Policy),
			fmt.Sprintf("  Current value: %s", v.Current),
			fmt.Sprintf("  Recommended value: %s", v.Recommended),
		}
	case audit.ServerRef:
		return []string{fmt.Sprintf("Server: %s", v.Server)}
	case audit.DNRef:
		return []string{fmt.Sprintf("DN: %s", directory.ExtractCN(v.DN))}
	case audit.GenericRecord:
		return []string{v.Summary()}
	}
	return []string{item.Summary()}
}

// itemSummary collapses affected items to one line, capped for inline cells.
func itemSummary(items []audit.AffectedItem, limit int) string {
	if len(items) == 0 {
		return ""
	}
	parts := make([]string, 0, limit)
	for i, item := range items {
		if i == limit {
			break
		}
		parts = append(parts, item.Summary())
	}
	out := strings.Join(parts, "; ")
	if len(items) > limit {
		out += fmt.Sprintf(" +%d more", len(items)-limit)
	}
	return out
}
