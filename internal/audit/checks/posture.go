package checks

import (
	"context"
	"strings"

	"github.com/adsecurecheck/adaudit/internal/audit"
	"github.com/adsecurecheck/adaudit/internal/directory"
)

// ProtocolPosture returns the protocol/CVE posture check family. Apart from
// the Administrator-rename check these are static advisories, not live
// protocol probes: they describe hardening steps and patches the operator
// must verify out of band. Replacing one with a real probe only requires a
// new Run func with the same signature.
func ProtocolPosture() []Check {
	return []Check{
		{Name: "ldap signing", Run: CheckLDAPSigning},
		{Name: "smb signing", Run: CheckSMBSigning},
		{Name: "smbv1", Run: CheckSMBv1},
		{Name: "zerologon advisory", Run: CheckZerologon},
		{Name: "printnightmare advisory", Run: CheckPrintNightmare},
		{Name: "ntlm authentication", Run: CheckNTLMAuthentication},
		{Name: "administrator rename", Run: CheckAdminAccountRenaming},
	}
}

// CheckLDAPSigning advises on LDAP signing enforcement. Static advisory:
// reading the effective GPO requires access this scanner does not request.
func CheckLDAPSigning(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	return &audit.Finding{
		Severity:       audit.SeverityHigh,
		Title:          "LDAP signing not enforced",
		Description:    "Advisory: LDAP signing is typically not enforced by default, which enables man-in-the-middle attacks. Verify the effective policy on the domain controller.",
		AffectedItems:  []audit.AffectedItem{audit.ServerRef{Server: conn.ServerAddress()}},
		Recommendation: `Set "Domain controller: LDAP server signing requirements" to "Require signing" via GPO.`,
	}, nil
}

// CheckSMBSigning advises on SMB signing enforcement. Static advisory.
func CheckSMBSigning(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	return &audit.Finding{
		Severity:       audit.SeverityHigh,
		Title:          "SMB signing not enforced",
		Description:    "Advisory: SMB signing is often not enforced, allowing relay attacks. Verify the effective policy on the server.",
		AffectedItems:  []audit.AffectedItem{audit.ServerRef{Server: conn.ServerAddress()}},
		Recommendation: `Enable "Microsoft network server: Digitally sign communications (always)" via GPO.`,
	}, nil
}

// CheckSMBv1 advises on the legacy SMBv1 protocol. Static advisory assuming
// the worst until the operator verifies it is disabled.
func CheckSMBv1(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	return &audit.Finding{
		Severity:       audit.SeverityHigh,
		Title:          "SMBv1 enabled",
		Description:    "Advisory: the SMBv1 protocol is obsolete and exploitable (WannaCry, NotPetya). Verify it is disabled on every server and workstation.",
		AffectedItems:  []audit.AffectedItem{audit.ServerRef{Server: conn.ServerAddress()}},
		Recommendation: "Disable SMBv1 everywhere. Use SMBv2 or SMBv3.",
	}, nil
}

// CheckZerologon always emits a patch-verification advisory for
// CVE-2020-1472; confirming exposure would require an active netlogon probe.
func CheckZerologon(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	return &audit.Finding{
		Severity:       audit.SeverityCritical,
		Title:          "Zerologon verification recommended",
		Description:    "The Zerologon vulnerability (CVE-2020-1472) allows a critical privilege escalation. Verify the patch is installed.",
		CVE:            "CVE-2020-1472",
		AffectedItems:  []audit.AffectedItem{audit.ServerRef{Server: conn.ServerAddress()}},
		Recommendation: "Install the Microsoft security updates of August 2020 or later. Confirm patch KB4571694 is present.",
	}, nil
}

// CheckPrintNightmare always emits a patch-verification advisory for
// CVE-2021-34527.
func CheckPrintNightmare(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	return &audit.Finding{
		Severity:       audit.SeverityCritical,
		Title:          "PrintNightmare verification recommended",
		Description:    "The PrintNightmare vulnerability allows remote code execution through the print spooler.",
		CVE:            "CVE-2021-34527",
		AffectedItems:  []audit.AffectedItem{audit.ServerRef{Server: conn.ServerAddress()}},
		Recommendation: "Install the July 2021 patches. Disable the print spooler on domain controllers when unused.",
	}, nil
}

// CheckNTLMAuthentication advises on NTLM usage; the scan itself binds with
// NTLM, so the protocol is demonstrably accepted.
func CheckNTLMAuthentication(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	return &audit.Finding{
		Severity:       audit.SeverityMedium,
		Title:          "NTLM authentication potentially active",
		Description:    "NTLM is weaker than Kerberos and exposed to relay attacks.",
		AffectedItems:  []audit.AffectedItem{audit.GenericRecord{"domain": conn.Domain()}},
		Recommendation: "Enforce Kerberos. Block NTLM via GPO except where compatibility requires it.",
	}, nil
}

// CheckAdminAccountRenaming queries the well-known RID-500 account and
// flags it when it still carries the default Administrator name.
func CheckAdminAccountRenaming(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	users, err := conn.SearchUsers(ctx, "(&(objectClass=user)(objectSid=*-500))", nil)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}

	adminName := users[0].Get("sAMAccountName", "Administrator")
	if !strings.EqualFold(adminName, "administrator") {
		return nil, nil
	}
	return &audit.Finding{
		Severity:       audit.SeverityLow,
		Title:          "Administrator account not renamed",
		Description:    "The default Administrator account has not been renamed, which eases brute-force attacks.",
		AffectedItems:  []audit.AffectedItem{audit.UserStatus{Username: adminName}},
		Recommendation: `Rename the Administrator account and create a rights-less "Administrator" decoy.`,
	}, nil
}
