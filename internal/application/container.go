// Package application wires repositories, the orchestrator and the
// application services together.
package application

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/adsecurecheck/adaudit/internal/application/scans"
	persistence "github.com/adsecurecheck/adaudit/internal/infrastructure/persistence/json"
	"github.com/adsecurecheck/adaudit/internal/notify"
	"github.com/adsecurecheck/adaudit/internal/report"
	"github.com/adsecurecheck/adaudit/internal/scan"
)

// Container holds the assembled object graph. A simple dependency
// injection container shared by the CLI commands and the API server.
type Container struct {
	ScanRepo     scan.Repository
	Pipeline     *report.Pipeline
	Orchestrator *scan.Orchestrator
	ScanService  *scans.Service
}

// Options tunes the container build. The zero value disables mail delivery
// and uses the runner defaults.
type Options struct {
	SMTP        *notify.SMTPConfig
	Concurrency int
	RateLimit   int
}

// NewContainer assembles repositories and services over the data directory.
func NewContainer(dataDir string, opts Options, logger *zap.SugaredLogger) (*Container, error) {
	repo, err := persistence.NewScanRepository(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan repository: %w", err)
	}

	pipeline := report.NewPipeline(logger)

	var notifier scan.Notifier
	if opts.SMTP != nil {
		mailer, err := notify.NewMailer(*opts.SMTP, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create mailer: %w", err)
		}
		notifier = mailer
	}

	orch := scan.NewOrchestrator(repo, pipeline, notifier, logger)
	orch.Concurrency = opts.Concurrency
	orch.RateLimit = opts.RateLimit

	return &Container{
		ScanRepo:     repo,
		Pipeline:     pipeline,
		Orchestrator: orch,
		ScanService:  scans.NewService(repo, orch, logger),
	}, nil
}
