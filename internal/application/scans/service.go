// Package scans is the application service between the HTTP API and the
// scan engine: request validation, background execution and read-side
// projections of the scan store.
package scans

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adsecurecheck/adaudit/internal/api"
	"github.com/adsecurecheck/adaudit/internal/directory"
	"github.com/adsecurecheck/adaudit/internal/scan"
	"github.com/adsecurecheck/adaudit/internal/shared/constants"
)

// Service implements api.ScanService and api.DirectoryService.
type Service struct {
	repo   scan.Repository
	orch   *scan.Orchestrator
	logger *zap.SugaredLogger

	// Timeout bounds one background audit run.
	Timeout time.Duration
}

// NewService wires the application service over a repository and an
// orchestrator.
func NewService(repo scan.Repository, orch *scan.Orchestrator, logger *zap.SugaredLogger) *Service {
	return &Service{
		repo:    repo,
		orch:    orch,
		logger:  logger,
		Timeout: constants.DefaultScanTimeout,
	}
}

// StartScan validates the request, registers a pending scan and runs the
// audit in the background. The returned summary carries the scan ID callers
// poll for completion.
func (s *Service) StartScan(_ context.Context, req api.ScanRequest) (*api.ScanSummary, error) {
	if req.Server == "" || req.Domain == "" {
		return nil, fmt.Errorf("server and domain are required")
	}
	if req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	sc, err := scan.NewScan(req.Server, req.Domain)
	if err != nil {
		return nil, err
	}

	summary := toSummary(sc, false)

	// The run outlives the HTTP request, so it gets its own context.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
		defer cancel()

		_, err := s.orch.Run(ctx, sc, scan.Request{
			Server:       req.Server,
			Domain:       req.Domain,
			Username:     req.Username,
			Password:     req.Password,
			UseSSL:       req.UseSSL,
			InactiveDays: req.InactiveDays,
			EmailTo:      req.EmailTo,
		})
		if err != nil {
			s.logger.Errorw("background scan failed", "scan", sc.ID(), "error", err)
		}
	}()

	return summary, nil
}

// ListScans returns every stored scan without the finding payload.
func (s *Service) ListScans(_ context.Context) ([]api.ScanSummary, error) {
	stored, err := s.repo.FindAll()
	if err != nil {
		return nil, err
	}
	summaries := make([]api.ScanSummary, 0, len(stored))
	for _, sc := range stored {
		summaries = append(summaries, *toSummary(sc, false))
	}
	return summaries, nil
}

// GetScan returns one scan including its findings.
func (s *Service) GetScan(_ context.Context, id string) (*api.ScanSummary, error) {
	sc, err := s.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	return toSummary(sc, true), nil
}

// DeleteScan removes a scan and its artifacts.
func (s *Service) DeleteScan(_ context.Context, id string) error {
	return s.repo.Delete(id)
}

// Stats aggregates the stored scan history.
func (s *Service) Stats(_ context.Context) (*api.DashboardStats, error) {
	stored, err := s.repo.FindAll()
	if err != nil {
		return nil, err
	}

	stats := &api.DashboardStats{TotalScans: len(stored)}
	riskSum := 0
	completed := 0
	for _, sc := range stored {
		switch sc.Status() {
		case scan.StatusCompleted:
			completed++
			riskSum += sc.Statistics().RiskScore
			stats.TotalFindings += sc.Statistics().Total
		case scan.StatusFailed:
			stats.FailedScans++
		}
		if stats.LastScanAt == nil && !sc.StartedAt().IsZero() {
			// FindAll returns newest first.
			started := sc.StartedAt()
			stats.LastScanAt = &started
		}
	}
	stats.CompletedScans = completed
	if completed > 0 {
		stats.AverageRiskScore = float64(riskSum) / float64(completed)
	}
	return stats, nil
}

// TestConnection probes the directory with the supplied credentials. Auth
// and reachability failures come back as an unsuccessful result, not an
// error, so the handler can echo the reason.
func (s *Service) TestConnection(ctx context.Context, req api.ScanRequest) (*api.ConnectionTest, error) {
	if req.Server == "" || req.Domain == "" || req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("server, domain, username and password are required")
	}

	creds := directory.NewCredentials(req.Username, req.Password)
	conn := s.orch.Connector(req.Server, req.Domain, creds, req.UseSSL, s.logger)

	if err := conn.Connect(ctx); err != nil {
		return &api.ConnectionTest{Success: false, Error: err.Error()}, nil
	}
	defer conn.Disconnect()

	info, err := conn.GetDomainInfo(ctx)
	if err != nil {
		return &api.ConnectionTest{Success: false, Error: err.Error()}, nil
	}

	return &api.ConnectionTest{
		Success:    true,
		DomainName: info.DomainName,
		BaseDN:     info.BaseDN,
	}, nil
}

func toSummary(sc *scan.Scan, includeFindings bool) *api.ScanSummary {
	summary := &api.ScanSummary{
		ID:        sc.ID(),
		Server:    sc.Server(),
		Domain:    sc.Domain(),
		Status:    string(sc.Status()),
		Error:     sc.Error(),
		Stats:     sc.Statistics(),
		Artifacts: sc.Artifacts(),
	}
	if started := sc.StartedAt(); !started.IsZero() {
		summary.StartedAt = &started
	}
	if completed := sc.CompletedAt(); !completed.IsZero() {
		summary.CompletedAt = &completed
	}
	if includeFindings {
		summary.Findings = sc.Findings()
	}
	return summary
}
