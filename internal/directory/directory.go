package directory

import (
	"context"
	"strings"
)

// Entry is one directory object flattened to its requested attributes.
// Values preserves multi-valued attributes (member, memberOf) in server order.
type Entry map[string][]string

// Get returns the first value for an attribute, or fallback when absent.
func (e Entry) Get(attr, fallback string) string {
	if vals, ok := e[attr]; ok && len(vals) > 0 {
		return vals[0]
	}
	return fallback
}

// Values returns every value recorded for an attribute.
func (e Entry) Values(attr string) []string {
	return e[attr]
}

// PrivilegedUser is one (member DN, well-known group) membership pair.
type PrivilegedUser struct {
	UserDN string `json:"user_dn"`
	Group  string `json:"group"`
}

// DomainInfo describes the audited domain. MinPwdLength is zero when the
// domain entry did not expose it.
type DomainInfo struct {
	DomainName        string `json:"domain_name"`
	DistinguishedName string `json:"distinguished_name,omitempty"`
	BaseDN            string `json:"base_dn"`
	MinPwdLength      int    `json:"min_pwd_length,omitempty"`
}

// Connector is a single authenticated session against a directory server.
// Search methods return empty (never nil) slices when nothing matches.
// Implementations serialize query access internally so independent checks
// may share one session from multiple goroutines.
type Connector interface {
	Connect(ctx context.Context) error
	Disconnect()
	SearchUsers(ctx context.Context, filter string, attributes []string) ([]Entry, error)
	SearchGroups(ctx context.Context, filter string, attributes []string) ([]Entry, error)
	SearchBase(ctx context.Context, baseDN, filter string, attributes []string) ([]Entry, error)
	GetPrivilegedUsers(ctx context.Context) ([]PrivilegedUser, error)
	GetDomainInfo(ctx context.Context) (DomainInfo, error)
	ServerAddress() string
	Domain() string
}

// Default attribute sets requested when a caller passes none.
var (
	DefaultUserAttributes = []string{
		"sAMAccountName", "userPrincipalName", "displayName",
		"memberOf", "whenCreated", "lastLogon", "pwdLastSet",
		"userAccountControl", "adminCount",
	}
	DefaultGroupAttributes = []string{
		"sAMAccountName", "distinguishedName", "member", "whenCreated",
	}
)

// privilegedGroups is the fixed catalog of well-known privileged groups
// aggregated by GetPrivilegedUsers.
var privilegedGroups = []string{
	"Domain Admins",
	"Enterprise Admins",
	"Schema Admins",
	"Administrators",
	"Account Operators",
	"Backup Operators",
	"Server Operators",
	"Print Operators",
}

// PrivilegedGroupCatalog returns a copy of the well-known group catalog.
func PrivilegedGroupCatalog() []string {
	return append([]string(nil), privilegedGroups...)
}

// BaseDN derives the search base from a DNS domain name: each dot-separated
// label becomes a DC= component, in original order.
// "corp.example.com" -> "DC=corp,DC=example,DC=com".
func BaseDN(domain string) string {
	parts := strings.Split(domain, ".")
	components := make([]string, 0, len(parts))
	for _, part := range parts {
		components = append(components, "DC="+part)
	}
	return strings.Join(components, ",")
}

// ExtractCN pulls the leading CN value out of a distinguished name for
// display purposes. Falls back to the raw DN when there is no CN prefix.
func ExtractCN(dn string) string {
	first := strings.SplitN(dn, ",", 2)[0]
	if strings.HasPrefix(strings.ToUpper(first), "CN=") {
		return first[3:]
	}
	return dn
}
