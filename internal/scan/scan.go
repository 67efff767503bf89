// Package scan owns the lifecycle of one directory audit: the Scan
// aggregate with its pending/running/terminal state machine, and the
// orchestrator that sequences connector, checks, scoring and reporting.
package scan

import (
	"fmt"
	"time"

	"github.com/adsecurecheck/adaudit/internal/audit"
	"github.com/adsecurecheck/adaudit/internal/directory"
	sharedErrors "github.com/adsecurecheck/adaudit/internal/shared/errors"
)

// Status represents the lifecycle state of a scan.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Scan is the aggregate for one audit run. It owns the finding set, the
// computed statistics and the produced artifact locations; once the status
// reaches a terminal value the aggregate no longer accepts mutation.
type Scan struct {
	id          string
	server      string
	domain      string
	domainInfo  directory.DomainInfo
	startedAt   time.Time
	completedAt time.Time
	status      Status
	errMsg      string
	findings    []audit.Finding
	stats       audit.Statistics
	artifacts   map[string]string
}

// NewScan creates a pending scan for a target server and domain.
func NewScan(server, domain string) (*Scan, error) {
	if server == "" || domain == "" {
		return nil, fmt.Errorf("%w: server and domain", sharedErrors.ErrMissingRequired)
	}
	return &Scan{
		id:        generateScanID(),
		server:    server,
		domain:    domain,
		status:    StatusPending,
		findings:  make([]audit.Finding, 0),
		artifacts: make(map[string]string),
	}, nil
}

// Reconstruct rebuilds a scan from persisted data.
func Reconstruct(id, server, domain string, domainInfo directory.DomainInfo,
	startedAt, completedAt time.Time, status Status, errMsg string,
	findings []audit.Finding, stats audit.Statistics, artifacts map[string]string) *Scan {
	if artifacts == nil {
		artifacts = make(map[string]string)
	}
	return &Scan{
		id:          id,
		server:      server,
		domain:      domain,
		domainInfo:  domainInfo,
		startedAt:   startedAt,
		completedAt: completedAt,
		status:      status,
		errMsg:      errMsg,
		findings:    findings,
		stats:       stats,
		artifacts:   artifacts,
	}
}

// Start transitions pending -> running and stamps the start time.
func (s *Scan) Start() error {
	if s.status != StatusPending {
		return fmt.Errorf("%w: cannot start from %q", sharedErrors.ErrInvalidScanStatus, s.status)
	}
	s.status = StatusRunning
	s.startedAt = time.Now().UTC()
	return nil
}

// Complete transitions running -> completed.
func (s *Scan) Complete() error {
	if s.status != StatusRunning {
		return fmt.Errorf("%w: cannot complete from %q", sharedErrors.ErrInvalidScanStatus, s.status)
	}
	s.status = StatusCompleted
	s.completedAt = time.Now().UTC()
	return nil
}

// Fail transitions to failed and records the triggering error message so
// callers never receive a bare exception.
func (s *Scan) Fail(reason string) error {
	if s.status == StatusCompleted {
		return fmt.Errorf("%w: cannot fail a completed scan", sharedErrors.ErrInvalidScanStatus)
	}
	s.status = StatusFailed
	s.errMsg = reason
	s.completedAt = time.Now().UTC()
	return nil
}

// SetDomainInfo records the domain metadata resolved once per scan.
func (s *Scan) SetDomainInfo(info directory.DomainInfo) {
	s.domainInfo = info
}

// SetFindings installs the collected finding set and derives statistics.
// Rejected once the scan is terminal.
func (s *Scan) SetFindings(findings []audit.Finding) error {
	if s.status.Terminal() {
		return sharedErrors.ErrScanFinished
	}
	s.findings = append([]audit.Finding(nil), findings...)
	s.stats = audit.BuildStatistics(s.findings)
	return nil
}

// AddArtifact records where a rendered report representation was persisted.
func (s *Scan) AddArtifact(format, location string) {
	s.artifacts[format] = location
}

// Getters

func (s *Scan) ID() string                       { return s.id }
func (s *Scan) Server() string                   { return s.server }
func (s *Scan) Domain() string                   { return s.domain }
func (s *Scan) DomainInfo() directory.DomainInfo { return s.domainInfo }
func (s *Scan) StartedAt() time.Time             { return s.startedAt }
func (s *Scan) CompletedAt() time.Time           { return s.completedAt }
func (s *Scan) Status() Status                   { return s.status }
func (s *Scan) Error() string                    { return s.errMsg }
func (s *Scan) Statistics() audit.Statistics     { return s.stats }

// Duration is zero until the scan reaches a terminal status.
func (s *Scan) Duration() time.Duration {
	if s.completedAt.IsZero() || s.startedAt.IsZero() {
		return 0
	}
	return s.completedAt.Sub(s.startedAt)
}

// Findings returns a copy to keep the aggregate immutable from outside.
func (s *Scan) Findings() []audit.Finding {
	return append([]audit.Finding(nil), s.findings...)
}

// Artifacts returns a copy of the format -> location map.
func (s *Scan) Artifacts() map[string]string {
	out := make(map[string]string, len(s.artifacts))
	for k, v := range s.artifacts {
		out[k] = v
	}
	return out
}

func generateScanID() string {
	now := time.Now().UTC()
	return fmt.Sprintf("scan-%s-%06d", now.Format("20060102150405"), now.Nanosecond()/1000)
}
