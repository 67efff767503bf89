package audit

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	sharedErrors "github.com/adsecurecheck/adaudit/internal/shared/errors"
)

// Severity classifies a finding. Only the four enumerated values are valid.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Severities lists all valid severities from most to least severe. Report
// renderers iterate this order.
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// ParseSeverity validates a raw severity string.
func ParseSeverity(raw string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return s, nil
	}
	return "", fmt.Errorf("%w: %q", sharedErrors.ErrInvalidSeverity, raw)
}

// Valid reports whether the severity is one of the enumerated values.
func (s Severity) Valid() bool {
	_, err := ParseSeverity(string(s))
	return err == nil
}

// ItemKind discriminates AffectedItem variants.
type ItemKind string

const (
	ItemUserStatus       ItemKind = "user_status"
	ItemPrivilegedMember ItemKind = "privileged_member"
	ItemPolicyGap        ItemKind = "policy_gap"
	ItemServerRef        ItemKind = "server_ref"
	ItemDNRef            ItemKind = "dn_ref"
	ItemGenericRecord    ItemKind = "generic_record"
)

// AffectedItem is one concrete object touched by a finding. Each check
// constructs the variant it means; renderers switch exhaustively over the
// kind instead of guessing from attribute names.
type AffectedItem interface {
	Kind() ItemKind
	// Summary is a one-line best-effort label used by tabular output.
	Summary() string
}

// UserStatus describes an account and why it was flagged.
type UserStatus struct {
	Username  string `json:"username"`
	LastLogon string `json:"last_logon,omitempty"`
	Status    string `json:"status,omitempty"`
}

func (u UserStatus) Kind() ItemKind  { return ItemUserStatus }
func (u UserStatus) Summary() string { return u.Username }

// PrivilegedMember identifies a member of a well-known privileged group.
type PrivilegedMember struct {
	Username string `json:"username,omitempty"`
	UserDN   string `json:"user_dn"`
	Group    string `json:"group"`
}

func (p PrivilegedMember) Kind() ItemKind { return ItemPrivilegedMember }
func (p PrivilegedMember) Summary() string {
	if p.Username != "" {
		return p.Username
	}
	return p.UserDN
}

// PolicyGap records a policy value that falls short of the recommendation.
type PolicyGap struct {
	Policy      string `json:"policy"`
	Current     string `json:"current_value"`
	Recommended string `json:"recommended_value"`
}

func (p PolicyGap) Kind() ItemKind  { return ItemPolicyGap }
func (p PolicyGap) Summary() string { return p.Policy }

// ServerRef points a server-scoped advisory at the audited host.
type ServerRef struct {
	Server string `json:"server"`
}

func (s ServerRef) Kind() ItemKind  { return ItemServerRef }
func (s ServerRef) Summary() string { return s.Server }

// DNRef references a directory object by distinguished name.
type DNRef struct {
	DN string `json:"dn"`
}

func (d DNRef) Kind() ItemKind  { return ItemDNRef }
func (d DNRef) Summary() string { return d.DN }

// GenericRecord carries arbitrary key/value detail for shapes none of the
// typed variants cover.
type GenericRecord map[string]string

func (g GenericRecord) Kind() ItemKind { return ItemGenericRecord }
func (g GenericRecord) Summary() string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+g[k])
	}
	return strings.Join(parts, " ")
}

// Finding is one detected weakness. Immutable once appended to a scan.
type Finding struct {
	Severity       Severity       `json:"severity"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	CVE            string         `json:"cve,omitempty"`
	AffectedItems  []AffectedItem `json:"affected_items,omitempty"`
	Recommendation string         `json:"recommendation"`
}

// Count reports how many items the finding carries. Always equals the
// length of AffectedItems.
func (f Finding) Count() int {
	return len(f.AffectedItems)
}

// Accumulator is the synchronized per-run finding collector. Checks append
// to it independently and never observe each other's output.
type Accumulator struct {
	mu       sync.Mutex
	findings []Finding
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{findings: make([]Finding, 0)}
}

// Append records one finding. Invalid severities are rejected so the
// four-value invariant holds for everything downstream.
func (a *Accumulator) Append(f Finding) error {
	if !f.Severity.Valid() {
		return fmt.Errorf("%w: %q", sharedErrors.ErrInvalidSeverity, f.Severity)
	}
	if f.Title == "" {
		return sharedErrors.ErrEmptyTitle
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.findings = append(a.findings, f)
	return nil
}

// Findings returns a copy of everything collected, in append order.
func (a *Accumulator) Findings() []Finding {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Finding(nil), a.findings...)
}
