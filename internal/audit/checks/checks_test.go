package checks

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/adsecurecheck/adaudit/internal/audit"
	"github.com/adsecurecheck/adaudit/internal/directory"
)

// fakeConnector is an in-memory directory.Connector for check tests.
type fakeConnector struct {
	users       []directory.Entry
	groups      []directory.Entry
	privileged  []directory.PrivilegedUser
	baseEntries map[string][]directory.Entry
	baseErr     map[string]error
	info        directory.DomainInfo

	usersErr      error
	privilegedErr error
	infoErr       error
}

func (f *fakeConnector) Connect(ctx context.Context) error { return nil }
func (f *fakeConnector) Disconnect()                       {}

func (f *fakeConnector) SearchUsers(ctx context.Context, filter string, attributes []string) ([]directory.Entry, error) {
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return f.users, nil
}

func (f *fakeConnector) SearchGroups(ctx context.Context, filter string, attributes []string) ([]directory.Entry, error) {
	return f.groups, nil
}

func (f *fakeConnector) SearchBase(ctx context.Context, baseDN, filter string, attributes []string) ([]directory.Entry, error) {
	if err := f.baseErr[baseDN]; err != nil {
		return nil, err
	}
	return f.baseEntries[baseDN], nil
}

func (f *fakeConnector) GetPrivilegedUsers(ctx context.Context) ([]directory.PrivilegedUser, error) {
	if f.privilegedErr != nil {
		return nil, f.privilegedErr
	}
	return f.privileged, nil
}

func (f *fakeConnector) GetDomainInfo(ctx context.Context) (directory.DomainInfo, error) {
	if f.infoErr != nil {
		return directory.DomainInfo{}, f.infoErr
	}
	return f.info, nil
}

func (f *fakeConnector) ServerAddress() string { return "dc01.corp.example.com" }
func (f *fakeConnector) Domain() string        { return "corp.example.com" }

func testRunner() *Runner {
	return &Runner{Logger: zap.NewNop().Sugar()}
}

func staticCheck(name, title string, severity audit.Severity) Check {
	return Check{
		Name: name,
		Run: func(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
			return &audit.Finding{Severity: severity, Title: title}, nil
		},
	}
}

func TestRunnerPreservesCatalogOrder(t *testing.T) {
	family := []Check{
		staticCheck("a", "first", audit.SeverityLow),
		staticCheck("b", "second", audit.SeverityMedium),
		staticCheck("c", "third", audit.SeverityHigh),
	}

	// Same catalog, many runs: order must never depend on scheduling.
	for run := 0; run < 20; run++ {
		acc := audit.NewAccumulator()
		if err := testRunner().Run(context.Background(), &fakeConnector{}, acc, family); err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		findings := acc.Findings()
		if len(findings) != 3 {
			t.Fatalf("expected 3 findings, got %d", len(findings))
		}
		for i, want := range []string{"first", "second", "third"} {
			if findings[i].Title != want {
				t.Fatalf("run %d: finding %d = %q, want %q", run, i, findings[i].Title, want)
			}
		}
	}
}

func TestRunnerSkipsFailingCheck(t *testing.T) {
	family := []Check{
		staticCheck("ok", "kept", audit.SeverityLow),
		{Name: "broken", Run: func(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
			return nil, errors.New("query exploded")
		}},
		staticCheck("ok2", "also kept", audit.SeverityLow),
	}

	acc := audit.NewAccumulator()
	if err := testRunner().Run(context.Background(), &fakeConnector{}, acc, family); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	findings := acc.Findings()
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].Title != "kept" || findings[1].Title != "also kept" {
		t.Fatalf("unexpected findings: %+v", findings)
	}
}

func TestRunnerDropsNilFindings(t *testing.T) {
	family := []Check{
		{Name: "quiet", Run: func(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
			return nil, nil
		}},
		staticCheck("loud", "flagged", audit.SeverityMedium),
	}

	acc := audit.NewAccumulator()
	if err := testRunner().Run(context.Background(), &fakeConnector{}, acc, family); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := len(acc.Findings()); got != 1 {
		t.Fatalf("expected 1 finding, got %d", got)
	}
}

func TestRunnerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acc := audit.NewAccumulator()
	err := testRunner().Run(ctx, &fakeConnector{}, acc, AccountHygiene(90))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(acc.Findings()) != 0 {
		t.Fatalf("cancelled run must not append findings")
	}
}

func TestRunnerMultipleFamilies(t *testing.T) {
	hygiene := []Check{staticCheck("h", "hygiene finding", audit.SeverityLow)}
	posture := []Check{staticCheck("p", "posture finding", audit.SeverityHigh)}

	acc := audit.NewAccumulator()
	if err := testRunner().Run(context.Background(), &fakeConnector{}, acc, hygiene, posture); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	findings := acc.Findings()
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].Title != "hygiene finding" || findings[1].Title != "posture finding" {
		t.Fatalf("families out of order: %+v", findings)
	}
}

func TestParseUAC(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   int
		wantOK bool
	}{
		{"normal account", "512", 512, true},
		{"disabled", "514", 514, true},
		{"never expires", "66048", 66048, true},
		{"zero", "0", 0, true},
		{"empty", "", 0, false},
		{"bracket sentinel", "[]", 0, false},
		{"garbage", "abc", 0, false},
		{"mixed", "12x", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseUAC(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("parseUAC(%q) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
