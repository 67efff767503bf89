package checks

import (
	"context"
	"testing"

	"github.com/adsecurecheck/adaudit/internal/audit"
	"github.com/adsecurecheck/adaudit/internal/directory"
)

func TestAdvisoriesAlwaysEmit(t *testing.T) {
	conn := &fakeConnector{}

	tests := []struct {
		name     string
		run      func(ctx context.Context, conn directory.Connector) (*audit.Finding, error)
		severity audit.Severity
		cve      string
	}{
		{"zerologon", CheckZerologon, audit.SeverityCritical, "CVE-2020-1472"},
		{"printnightmare", CheckPrintNightmare, audit.SeverityCritical, "CVE-2021-34527"},
		{"ldap signing", CheckLDAPSigning, audit.SeverityHigh, ""},
		{"smb signing", CheckSMBSigning, audit.SeverityHigh, ""},
		{"smbv1", CheckSMBv1, audit.SeverityHigh, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			finding, err := tt.run(context.Background(), conn)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if finding == nil {
				t.Fatal("advisory checks always produce a finding")
			}
			if finding.Severity != tt.severity {
				t.Fatalf("severity = %s, want %s", finding.Severity, tt.severity)
			}
			if finding.CVE != tt.cve {
				t.Fatalf("cve = %q, want %q", finding.CVE, tt.cve)
			}
			ref, ok := finding.AffectedItems[0].(audit.ServerRef)
			if !ok || ref.Server != conn.ServerAddress() {
				t.Fatalf("expected ServerRef to the audited host, got %+v", finding.AffectedItems[0])
			}
		})
	}
}

func TestCheckNTLMAuthentication(t *testing.T) {
	conn := &fakeConnector{}
	finding, err := CheckNTLMAuthentication(context.Background(), conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finding.Severity != audit.SeverityMedium {
		t.Fatalf("severity = %s, want medium", finding.Severity)
	}
	record, ok := finding.AffectedItems[0].(audit.GenericRecord)
	if !ok || record["domain"] != conn.Domain() {
		t.Fatalf("expected domain record, got %+v", finding.AffectedItems[0])
	}
}

func TestCheckAdminAccountRenaming(t *testing.T) {
	tests := []struct {
		name        string
		users       []directory.Entry
		wantFinding bool
	}{
		{"default name", []directory.Entry{userEntry("Administrator", "", "512")}, true},
		{"default name lowercase", []directory.Entry{userEntry("administrator", "", "512")}, true},
		{"renamed", []directory.Entry{userEntry("breakglass-root", "", "512")}, false},
		{"rid-500 not visible", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConnector{users: tt.users}
			finding, err := CheckAdminAccountRenaming(context.Background(), conn)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantFinding && (finding == nil || finding.Severity != audit.SeverityLow) {
				t.Fatalf("expected low finding, got %+v", finding)
			}
			if !tt.wantFinding && finding != nil {
				t.Fatalf("expected no finding, got %+v", finding)
			}
		})
	}
}

func TestProtocolPostureCatalog(t *testing.T) {
	family := ProtocolPosture()
	if len(family) != 7 {
		t.Fatalf("catalog size = %d, want 7", len(family))
	}
	seen := make(map[string]bool, len(family))
	for _, check := range family {
		if check.Name == "" || check.Run == nil {
			t.Fatalf("malformed catalog entry: %+v", check)
		}
		if seen[check.Name] {
			t.Fatalf("duplicate check name %q", check.Name)
		}
		seen[check.Name] = true
	}
}
