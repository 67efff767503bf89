package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/adsecurecheck/adaudit/internal/audit"
	"github.com/adsecurecheck/adaudit/internal/audit/checks"
	"github.com/adsecurecheck/adaudit/internal/directory"
	"github.com/adsecurecheck/adaudit/internal/report"
	"github.com/adsecurecheck/adaudit/internal/shared/constants"
	sharedErrors "github.com/adsecurecheck/adaudit/internal/shared/errors"
)

// Repository persists scans and their rendered artifacts.
type Repository interface {
	Save(sc *Scan) error
	SaveArtifact(scanID, filename string, payload []byte) (string, error)
	FindByID(id string) (*Scan, error)
	FindAll() ([]*Scan, error)
	Delete(id string) error
}

// Notifier delivers the completed report to interested parties. The
// artifacts map carries format -> persisted location.
type Notifier interface {
	SendReport(ctx context.Context, sc *Scan, recipients []string, artifacts map[string]string) error
}

// Request carries everything one audit run needs. The password is wrapped
// before it reaches any component that logs or persists.
type Request struct {
	Server       string
	Domain       string
	Username     string
	Password     string
	UseSSL       bool
	InactiveDays int
	EmailTo      []string
}

// ConnectorFactory builds the directory session for one run. Swappable in
// tests for a fake connector.
type ConnectorFactory func(server, domain string, creds *directory.Credentials, useSSL bool, logger *zap.SugaredLogger) directory.Connector

// Orchestrator sequences one full audit: connect, run both check families,
// score, render and persist the report artifacts, then notify. Connector
// teardown is guaranteed exactly once on every path after a successful
// connect.
type Orchestrator struct {
	Repo      Repository
	Pipeline  *report.Pipeline
	Notifier  Notifier
	Logger    *zap.SugaredLogger
	Connector ConnectorFactory

	// Runner tuning, zero values fall back to the runner defaults.
	Concurrency int
	RateLimit   int
}

// NewOrchestrator wires an orchestrator over the real LDAP connector.
func NewOrchestrator(repo Repository, pipeline *report.Pipeline, notifier Notifier, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		Repo:     repo,
		Pipeline: pipeline,
		Notifier: notifier,
		Logger:   logger,
		Connector: func(server, domain string, creds *directory.Credentials, useSSL bool, logger *zap.SugaredLogger) directory.Connector {
			return directory.NewLDAPConnector(server, domain, creds, useSSL, logger)
		},
	}
}

// Execute runs one audit end to end and always returns the scan aggregate,
// terminal on every path. Reporting and persistence failures degrade the
// run (logged, scan still completes); connector and check-phase failures
// fail it.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Scan, error) {
	sc, err := NewScan(req.Server, req.Domain)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, sc, req)
}

// Run drives an already-created pending scan through the full audit. Split
// from Execute so callers that report a scan ID before the audit finishes
// can create the aggregate first.
func (o *Orchestrator) Run(ctx context.Context, sc *Scan, req Request) (*Scan, error) {
	if err := sc.Start(); err != nil {
		return nil, err
	}
	o.save(sc)

	o.Logger.Infow("scan started", "scan", sc.ID(), "server", req.Server, "domain", req.Domain)

	creds := directory.NewCredentials(req.Username, req.Password)
	conn := o.Connector(req.Server, req.Domain, creds, req.UseSSL, o.Logger)

	if err := conn.Connect(ctx); err != nil {
		return o.fail(sc, fmt.Errorf("%w: %w", sharedErrors.ErrOrchestration, err))
	}
	disconnect := sync.OnceFunc(conn.Disconnect)
	defer disconnect()

	info, err := conn.GetDomainInfo(ctx)
	if err != nil {
		return o.fail(sc, fmt.Errorf("%w: %w", sharedErrors.ErrOrchestration, err))
	}
	sc.SetDomainInfo(info)

	days := req.InactiveDays
	if days <= 0 {
		days = constants.DefaultInactiveDays
	}

	runner := &checks.Runner{
		Concurrency: o.Concurrency,
		RateLimit:   o.RateLimit,
		Logger:      o.Logger,
	}
	acc := audit.NewAccumulator()
	if err := runner.Run(ctx, conn, acc, checks.AccountHygiene(days), checks.ProtocolPosture()); err != nil {
		return o.fail(sc, fmt.Errorf("%w: %w", sharedErrors.ErrScanCancelled, err))
	}

	disconnect()

	if err := sc.SetFindings(acc.Findings()); err != nil {
		return o.fail(sc, err)
	}
	if err := sc.Complete(); err != nil {
		return o.fail(sc, err)
	}

	stats := sc.Statistics()
	o.Logger.Infow("scan completed",
		"scan", sc.ID(),
		"findings", stats.Total,
		"riskScore", stats.RiskScore,
		"duration", sc.Duration().String(),
	)

	o.persistArtifacts(sc)
	o.save(sc)
	o.notify(ctx, sc, req.EmailTo)

	return sc, nil
}

// fail moves the scan to failed, persists the terminal state and returns
// the triggering error alongside the aggregate.
func (o *Orchestrator) fail(sc *Scan, cause error) (*Scan, error) {
	o.Logger.Errorw("scan failed", "scan", sc.ID(), "error", cause)
	if err := sc.Fail(cause.Error()); err != nil {
		o.Logger.Errorw("recording scan failure", "scan", sc.ID(), "error", err)
	}
	o.save(sc)
	return sc, cause
}

// persistArtifacts renders and stores every artifact format. A format that
// fails to render or persist is logged and skipped.
func (o *Orchestrator) persistArtifacts(sc *Scan) {
	if o.Pipeline == nil || o.Repo == nil {
		return
	}
	data := ReportData(sc)
	for format, payload := range o.Pipeline.RenderAll(data) {
		name := report.ArtifactName(sc.Domain(), sc.CompletedAt(), format)
		location, err := o.Repo.SaveArtifact(sc.ID(), name, payload)
		if err != nil {
			o.Logger.Errorw("persisting report artifact", "scan", sc.ID(), "format", format, "error", err)
			continue
		}
		sc.AddArtifact(string(format), location)
	}
}

func (o *Orchestrator) save(sc *Scan) {
	if o.Repo == nil {
		return
	}
	if err := o.Repo.Save(sc); err != nil {
		o.Logger.Errorw("persisting scan", "scan", sc.ID(), "error", err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, sc *Scan, recipients []string) {
	if o.Notifier == nil || len(recipients) == 0 {
		return
	}
	if err := o.Notifier.SendReport(ctx, sc, recipients, sc.Artifacts()); err != nil {
		o.Logger.Errorw("sending report email", "scan", sc.ID(), "error", err)
	}
}

// ReportData flattens a scan into the renderer input.
func ReportData(sc *Scan) report.Data {
	return report.Data{
		ScanID:      sc.ID(),
		Server:      sc.Server(),
		Domain:      sc.Domain(),
		DomainInfo:  sc.DomainInfo(),
		StartedAt:   sc.StartedAt(),
		CompletedAt: sc.CompletedAt(),
		Duration:    formatDuration(sc.Duration()),
		Status:      string(sc.Status()),
		Error:       sc.Error(),
		Findings:    sc.Findings(),
		Stats:       sc.Statistics(),
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return d.Round(time.Millisecond).String()
}
