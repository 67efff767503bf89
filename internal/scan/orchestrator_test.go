package scan

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/adsecurecheck/adaudit/internal/directory"
	"github.com/adsecurecheck/adaudit/internal/report"
	sharedErrors "github.com/adsecurecheck/adaudit/internal/shared/errors"
)

// fakeConnector records lifecycle calls and serves canned directory data.
type fakeConnector struct {
	mu          sync.Mutex
	connectErr  error
	connects    int
	disconnects int
}

func (f *fakeConnector) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeConnector) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeConnector) SearchUsers(ctx context.Context, filter string, attributes []string) ([]directory.Entry, error) {
	return []directory.Entry{}, nil
}

func (f *fakeConnector) SearchGroups(ctx context.Context, filter string, attributes []string) ([]directory.Entry, error) {
	return []directory.Entry{}, nil
}

func (f *fakeConnector) SearchBase(ctx context.Context, baseDN, filter string, attributes []string) ([]directory.Entry, error) {
	return []directory.Entry{}, nil
}

func (f *fakeConnector) GetPrivilegedUsers(ctx context.Context) ([]directory.PrivilegedUser, error) {
	return []directory.PrivilegedUser{}, nil
}

func (f *fakeConnector) GetDomainInfo(ctx context.Context) (directory.DomainInfo, error) {
	return directory.DomainInfo{
		DomainName:   "corp.example.com",
		BaseDN:       "DC=corp,DC=example,DC=com",
		MinPwdLength: 8,
	}, nil
}

func (f *fakeConnector) ServerAddress() string { return "dc01.corp.example.com" }
func (f *fakeConnector) Domain() string        { return "corp.example.com" }

// fakeRepository is an in-memory Repository.
type fakeRepository struct {
	mu        sync.Mutex
	scans     map[string]*Scan
	artifacts map[string][]string
	saveErr   error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		scans:     make(map[string]*Scan),
		artifacts: make(map[string][]string),
	}
}

func (r *fakeRepository) Save(sc *Scan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.scans[sc.ID()] = sc
	return nil
}

func (r *fakeRepository) SaveArtifact(scanID, filename string, payload []byte) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[scanID] = append(r.artifacts[scanID], filename)
	return "/data/scans/" + scanID + "/" + filename, nil
}

func (r *fakeRepository) FindByID(id string) (*Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sc, ok := r.scans[id]
	if !ok {
		return nil, sharedErrors.ErrScanNotFound
	}
	return sc, nil
}

func (r *fakeRepository) FindAll() ([]*Scan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Scan, 0, len(r.scans))
	for _, sc := range r.scans {
		out = append(out, sc)
	}
	return out, nil
}

func (r *fakeRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.scans[id]; !ok {
		return sharedErrors.ErrScanNotFound
	}
	delete(r.scans, id)
	return nil
}

func testOrchestrator(conn *fakeConnector, repo *fakeRepository) *Orchestrator {
	logger := zap.NewNop().Sugar()
	return &Orchestrator{
		Repo:     repo,
		Pipeline: report.NewPipeline(logger),
		Logger:   logger,
		Connector: func(server, domain string, creds *directory.Credentials, useSSL bool, logger *zap.SugaredLogger) directory.Connector {
			return conn
		},
	}
}

func testRequest() Request {
	return Request{
		Server:   "dc01.corp.example.com",
		Domain:   "corp.example.com",
		Username: "audit-svc",
		Password: "pw",
	}
}

func TestExecuteCompletesScan(t *testing.T) {
	conn := &fakeConnector{}
	repo := newFakeRepository()
	orch := testOrchestrator(conn, repo)

	sc, err := orch.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if sc.Status() != StatusCompleted {
		t.Fatalf("status = %q", sc.Status())
	}

	// The static advisories and the weak-policy finding always surface even
	// against an empty directory.
	stats := sc.Statistics()
	if stats.Total == 0 || stats.CriticalCount < 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.RiskScore <= 0 {
		t.Fatalf("risk score = %d", stats.RiskScore)
	}

	if conn.connects != 1 || conn.disconnects != 1 {
		t.Fatalf("connects=%d disconnects=%d, want 1/1", conn.connects, conn.disconnects)
	}

	if len(sc.Artifacts()) != len(report.ArtifactFormats) {
		t.Fatalf("artifacts = %v", sc.Artifacts())
	}
	if len(repo.artifacts[sc.ID()]) != len(report.ArtifactFormats) {
		t.Fatalf("persisted artifacts = %v", repo.artifacts[sc.ID()])
	}

	stored, err := repo.FindByID(sc.ID())
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Status() != StatusCompleted {
		t.Fatalf("persisted status = %q", stored.Status())
	}
}

func TestExecuteConnectFailure(t *testing.T) {
	conn := &fakeConnector{connectErr: sharedErrors.ErrAuthentication}
	repo := newFakeRepository()
	orch := testOrchestrator(conn, repo)

	sc, err := orch.Execute(context.Background(), testRequest())
	if !errors.Is(err, sharedErrors.ErrOrchestration) {
		t.Fatalf("err = %v, want ErrOrchestration", err)
	}
	if !errors.Is(err, sharedErrors.ErrAuthentication) {
		t.Fatalf("err = %v, connector cause must stay in the chain", err)
	}
	if sc == nil || sc.Status() != StatusFailed {
		t.Fatalf("scan = %+v", sc)
	}
	if sc.Error() == "" {
		t.Fatal("failed scan should carry the failure reason")
	}
	if conn.disconnects != 0 {
		t.Fatalf("disconnects = %d, want 0 before a successful connect", conn.disconnects)
	}

	// Terminal state was persisted.
	stored, err := repo.FindByID(sc.ID())
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.Status() != StatusFailed {
		t.Fatalf("persisted status = %q", stored.Status())
	}
}

func TestExecuteCancelled(t *testing.T) {
	conn := &fakeConnector{}
	repo := newFakeRepository()
	orch := testOrchestrator(conn, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc, err := orch.Execute(ctx, testRequest())
	if !errors.Is(err, sharedErrors.ErrScanCancelled) {
		t.Fatalf("err = %v, want ErrScanCancelled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, context cause must stay in the chain", err)
	}
	if sc.Status() != StatusFailed {
		t.Fatalf("status = %q", sc.Status())
	}
	if conn.disconnects != 1 {
		t.Fatalf("disconnects = %d, want exactly one teardown", conn.disconnects)
	}
}

func TestExecuteMissingTarget(t *testing.T) {
	orch := testOrchestrator(&fakeConnector{}, newFakeRepository())
	if _, err := orch.Execute(context.Background(), Request{Domain: "corp.example.com"}); !errors.Is(err, sharedErrors.ErrMissingRequired) {
		t.Fatalf("err = %v, want ErrMissingRequired", err)
	}
}

func TestExecuteSurvivesRepositoryFailures(t *testing.T) {
	conn := &fakeConnector{}
	repo := newFakeRepository()
	repo.saveErr = sharedErrors.ErrRepositoryOperation
	orch := testOrchestrator(conn, repo)

	sc, err := orch.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("persistence failures must not fail the scan: %v", err)
	}
	if sc.Status() != StatusCompleted {
		t.Fatalf("status = %q", sc.Status())
	}
}

func TestReportData(t *testing.T) {
	conn := &fakeConnector{}
	orch := testOrchestrator(conn, newFakeRepository())

	sc, err := orch.Execute(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data := ReportData(sc)
	if data.ScanID != sc.ID() || data.Domain != "corp.example.com" {
		t.Fatalf("data = %+v", data)
	}
	if data.Status != string(StatusCompleted) {
		t.Fatalf("status = %q", data.Status)
	}
	if len(data.Findings) != sc.Statistics().Total {
		t.Fatalf("findings = %d, stats total = %d", len(data.Findings), sc.Statistics().Total)
	}
	if data.Duration != "" && !strings.ContainsAny(data.Duration, "smun") {
		t.Fatalf("duration = %q", data.Duration)
	}
	if data.DomainInfo.MinPwdLength != 8 {
		t.Fatalf("domain info = %+v", data.DomainInfo)
	}
}
