package json

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adsecurecheck/adaudit/internal/audit"
	"github.com/adsecurecheck/adaudit/internal/directory"
	"github.com/adsecurecheck/adaudit/internal/scan"
	sharedErrors "github.com/adsecurecheck/adaudit/internal/shared/errors"
	"github.com/adsecurecheck/adaudit/internal/shared/security"
)

func testRepo(t *testing.T) *ScanRepository {
	t.Helper()
	repo, err := NewScanRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewScanRepository: %v", err)
	}
	return repo
}

// buildScan reconstructs a completed scan whose findings cover every
// affected-item variant, so a round trip exercises the full codec.
func buildScan(id string, startedAt time.Time) *scan.Scan {
	findings := []audit.Finding{
		{
			Severity:    audit.SeverityCritical,
			Title:       "Enterprise Admins group is populated",
			Description: "Accounts hold Enterprise Admin rights.",
			AffectedItems: []audit.AffectedItem{
				audit.PrivilegedMember{UserDN: "CN=Alice,DC=corp,DC=example,DC=com", Group: "Enterprise Admins"},
				audit.DNRef{DN: "CN=Bob,DC=corp,DC=example,DC=com"},
			},
			Recommendation: "Empty the group.",
		},
		{
			Severity:    audit.SeverityHigh,
			Title:       "Weak minimum password length",
			Description: "Policy below recommended baseline.",
			AffectedItems: []audit.AffectedItem{
				audit.PolicyGap{Policy: "Minimum password length", Current: "8", Recommended: "14+ characters"},
			},
			Recommendation: "Raise the policy.",
		},
		{
			Severity:    audit.SeverityMedium,
			Title:       "NTLM authentication likely enabled",
			Description: "Legacy authentication remains available.",
			AffectedItems: []audit.AffectedItem{
				audit.GenericRecord{"domain": "corp.example.com"},
				audit.ServerRef{Server: "dc01.corp.example.com"},
			},
			Recommendation: "Restrict NTLM.",
		},
		{
			Severity:    audit.SeverityLow,
			Title:       "Accounts inactive for more than 90 days",
			Description: "Stale accounts remain enabled.",
			AffectedItems: []audit.AffectedItem{
				audit.UserStatus{Username: "carol", LastLogon: "Never logged in", Status: "inactive"},
			},
			Recommendation: "Disable stale accounts.",
		},
	}

	return scan.Reconstruct(id, "dc01.corp.example.com", "corp.example.com",
		directory.DomainInfo{
			DomainName:   "corp.example.com",
			BaseDN:       "DC=corp,DC=example,DC=com",
			MinPwdLength: 8,
		},
		startedAt, startedAt.Add(30*time.Second), scan.StatusCompleted, "",
		findings, audit.BuildStatistics(findings),
		map[string]string{"txt": "/data/scans/" + id + "/report.txt"})
}

func TestSaveAndFindByID(t *testing.T) {
	repo := testRepo(t)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	original := buildScan("scan-a", started)

	if err := repo.Save(original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := repo.FindByID("scan-a")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}

	if loaded.ID() != original.ID() || loaded.Status() != scan.StatusCompleted {
		t.Fatalf("loaded scan: id=%q status=%q", loaded.ID(), loaded.Status())
	}
	if !loaded.StartedAt().Equal(started) {
		t.Fatalf("started at = %v", loaded.StartedAt())
	}
	if loaded.DomainInfo().MinPwdLength != 8 {
		t.Fatalf("domain info = %+v", loaded.DomainInfo())
	}
	if loaded.Statistics() != original.Statistics() {
		t.Fatalf("stats = %+v, want %+v", loaded.Statistics(), original.Statistics())
	}
	if loaded.Artifacts()["txt"] == "" {
		t.Fatalf("artifacts = %v", loaded.Artifacts())
	}

	findings := loaded.Findings()
	if len(findings) != 4 {
		t.Fatalf("findings = %d", len(findings))
	}

	// Every affected-item variant survives with its kind intact.
	kinds := make(map[audit.ItemKind]int)
	for _, f := range findings {
		for _, item := range f.AffectedItems {
			kinds[item.Kind()]++
		}
	}
	for _, kind := range []audit.ItemKind{
		audit.ItemUserStatus, audit.ItemPrivilegedMember, audit.ItemPolicyGap,
		audit.ItemServerRef, audit.ItemDNRef, audit.ItemGenericRecord,
	} {
		if kinds[kind] == 0 {
			t.Fatalf("item kind %q lost in round trip (got %v)", kind, kinds)
		}
	}

	member := findings[0].AffectedItems[0].(audit.PrivilegedMember)
	if member.Group != "Enterprise Admins" {
		t.Fatalf("privileged member = %+v", member)
	}
	gap := findings[1].AffectedItems[0].(audit.PolicyGap)
	if gap.Recommended != "14+ characters" {
		t.Fatalf("policy gap = %+v", gap)
	}
}

func TestFindByIDMissing(t *testing.T) {
	repo := testRepo(t)
	if _, err := repo.FindByID("scan-missing"); !errors.Is(err, sharedErrors.ErrScanNotFound) {
		t.Fatalf("err = %v, want ErrScanNotFound", err)
	}
}

func TestFindByIDCorrupt(t *testing.T) {
	repo := testRepo(t)
	dir := filepath.Join(repo.scansDir, "scan-bad")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, scanFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := repo.FindByID("scan-bad"); !errors.Is(err, sharedErrors.ErrInvalidData) {
		t.Fatalf("err = %v, want ErrInvalidData", err)
	}
}

func TestFindAllNewestFirst(t *testing.T) {
	repo := testRepo(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"scan-old", "scan-mid", "scan-new"} {
		if err := repo.Save(buildScan(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	all, err := repo.FindAll()
	if err != nil {
		t.Fatalf("FindAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d", len(all))
	}
	if all[0].ID() != "scan-new" || all[2].ID() != "scan-old" {
		t.Fatalf("order = %s, %s, %s", all[0].ID(), all[1].ID(), all[2].ID())
	}
}

func TestDelete(t *testing.T) {
	repo := testRepo(t)
	sc := buildScan("scan-del", time.Now().UTC())
	if err := repo.Save(sc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := repo.SaveArtifact("scan-del", "report.txt", []byte("body")); err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}

	if err := repo.Delete("scan-del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.FindByID("scan-del"); !errors.Is(err, sharedErrors.ErrScanNotFound) {
		t.Fatalf("err after delete = %v", err)
	}
	if err := repo.Delete("scan-del"); !errors.Is(err, sharedErrors.ErrScanNotFound) {
		t.Fatalf("second delete = %v", err)
	}
}

func TestSaveArtifact(t *testing.T) {
	repo := testRepo(t)
	sc := buildScan("scan-art", time.Now().UTC())
	if err := repo.Save(sc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	location, err := repo.SaveArtifact("scan-art", "report_corp_example_com_20260301_100000.txt", []byte("REPORT"))
	if err != nil {
		t.Fatalf("SaveArtifact: %v", err)
	}
	body, err := os.ReadFile(location)
	if err != nil {
		t.Fatalf("reading artifact back: %v", err)
	}
	if string(body) != "REPORT" {
		t.Fatalf("artifact body = %q", body)
	}
	if !strings.Contains(location, "scan-art") {
		t.Fatalf("location = %q", location)
	}
}

func TestSaveArtifactRejectsTraversal(t *testing.T) {
	repo := testRepo(t)
	if _, err := repo.SaveArtifact("scan-x", "../../escape.txt", []byte("x")); !errors.Is(err, security.ErrPathEscape) {
		t.Fatalf("err = %v, want ErrPathEscape", err)
	}
	if _, err := repo.SaveArtifact("../scan-x", "report.txt", []byte("x")); !errors.Is(err, security.ErrPathEscape) {
		t.Fatalf("err = %v, want ErrPathEscape", err)
	}
}
