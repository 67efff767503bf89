package audit

import (
	"errors"
	"sync"
	"testing"

	sharedErrors "github.com/adsecurecheck/adaudit/internal/shared/errors"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		raw     string
		want    Severity
		wantErr bool
	}{
		{"critical", SeverityCritical, false},
		{"HIGH", SeverityHigh, false},
		{"  Medium ", SeverityMedium, false},
		{"low", SeverityLow, false},
		{"", "", true},
		{"severe", "", true},
		{"criticall", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSeverity(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, sharedErrors.ErrInvalidSeverity) {
					t.Fatalf("expected ErrInvalidSeverity, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseSeverity(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestAccumulatorRejectsInvalid(t *testing.T) {
	acc := NewAccumulator()

	err := acc.Append(Finding{Severity: "urgent", Title: "bad severity"})
	if !errors.Is(err, sharedErrors.ErrInvalidSeverity) {
		t.Fatalf("expected ErrInvalidSeverity, got %v", err)
	}

	err = acc.Append(Finding{Severity: SeverityLow})
	if !errors.Is(err, sharedErrors.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}

	if len(acc.Findings()) != 0 {
		t.Fatal("rejected findings must not be stored")
	}
}

func TestAccumulatorConcurrentAppend(t *testing.T) {
	acc := NewAccumulator()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = acc.Append(Finding{Severity: SeverityLow, Title: "concurrent"})
		}()
	}
	wg.Wait()

	if got := len(acc.Findings()); got != 50 {
		t.Fatalf("stored %d findings, want 50", got)
	}
}

func TestFindingCountMatchesItems(t *testing.T) {
	f := Finding{
		Severity: SeverityMedium,
		Title:    "t",
		AffectedItems: []AffectedItem{
			UserStatus{Username: "alice"},
			DNRef{DN: "CN=bob,DC=corp,DC=example,DC=com"},
		},
	}
	if f.Count() != len(f.AffectedItems) {
		t.Fatalf("Count = %d, want %d", f.Count(), len(f.AffectedItems))
	}
}

func TestGenericRecordSummaryIsSorted(t *testing.T) {
	record := GenericRecord{"zeta": "1", "alpha": "2", "mid": "3"}
	if got, want := record.Summary(), "alpha=2 mid=3 zeta=1"; got != want {
		t.Fatalf("Summary = %q, want %q", got, want)
	}
}

func TestAffectedItemKinds(t *testing.T) {
	tests := []struct {
		item AffectedItem
		kind ItemKind
	}{
		{UserStatus{Username: "a"}, ItemUserStatus},
		{PrivilegedMember{UserDN: "dn", Group: "g"}, ItemPrivilegedMember},
		{PolicyGap{Policy: "p"}, ItemPolicyGap},
		{ServerRef{Server: "s"}, ItemServerRef},
		{DNRef{DN: "dn"}, ItemDNRef},
		{GenericRecord{}, ItemGenericRecord},
	}
	for _, tt := range tests {
		if tt.item.Kind() != tt.kind {
			t.Fatalf("%T.Kind() = %s, want %s", tt.item, tt.item.Kind(), tt.kind)
		}
	}
}

func TestPrivilegedMemberSummaryFallsBackToDN(t *testing.T) {
	withName := PrivilegedMember{Username: "alice", UserDN: "CN=alice,DC=x", Group: "Domain Admins"}
	if withName.Summary() != "alice" {
		t.Fatalf("Summary = %q", withName.Summary())
	}
	withoutName := PrivilegedMember{UserDN: "CN=alice,DC=x", Group: "Domain Admins"}
	if withoutName.Summary() != "CN=alice,DC=x" {
		t.Fatalf("Summary = %q", withoutName.Summary())
	}
}
