package checks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adsecurecheck/adaudit/internal/audit"
	"github.com/adsecurecheck/adaudit/internal/directory"
)

// userAccountControl flag bits.
const (
	uacAccountDisable     = 2
	uacDontExpirePassword = 65536
)

const (
	// Display caps keep findings readable; descriptions still carry totals.
	maxInactiveItems    = 20
	maxNeverExpireItems = 20
	maxAdminItems       = 10

	domainAdminLimit       = 5
	minPasswordLengthFloor = 12

	// Directories that never granted the attribute report the pre-2000
	// functional default.
	assumedMinPwdLength = 8
)

// AccountHygiene returns the account-hygiene check family. inactiveDays is
// the staleness threshold carried into the inactive-account finding text;
// the detection currently only recognizes never-logged-in sentinels (see
// CheckInactiveAccounts).
func AccountHygiene(inactiveDays int) []Check {
	if inactiveDays <= 0 {
		inactiveDays = 90
	}
	return []Check{
		{Name: "inactive accounts", Run: CheckInactiveAccounts(inactiveDays)},
		{Name: "excess domain admins", Run: CheckExcessDomainAdmins},
		{Name: "enterprise admins present", Run: CheckEnterpriseAdminsPresent},
		{Name: "password never expires", Run: CheckPasswordNeverExpires},
		{Name: "disabled privileged accounts", Run: CheckDisabledPrivilegedAccounts},
		{Name: "password policy floor", Run: CheckPasswordPolicy},
	}
}

// CheckInactiveAccounts flags accounts that report no successful logon.
// The days threshold shapes the finding text only: lastLogon arrives as
// ambiguous string encodings ("0", "[]") whose timestamp semantics are not
// reliable enough for age comparison, so only the never-logged-in branch is
// implemented.
func CheckInactiveAccounts(days int) func(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	return func(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
		users, err := conn.SearchUsers(ctx, "", nil)
		if err != nil {
			return nil, err
		}

		total := 0
		items := make([]audit.AffectedItem, 0)
		for _, user := range users {
			lastLogon := user.Get("lastLogon", "0")
			if lastLogon != "0" && lastLogon != "[]" {
				continue
			}
			total++
			if len(items) < maxInactiveItems {
				items = append(items, audit.UserStatus{
					Username:  user.Get("sAMAccountName", "Unknown"),
					LastLogon: "Never",
					Status:    "Never logged in",
				})
			}
		}

		if total == 0 {
			return nil, nil
		}
		return &audit.Finding{
			Severity: audit.SeverityMedium,
			Title:    fmt.Sprintf("Accounts inactive for more than %d days", days),
			Description: fmt.Sprintf("%d accounts have not been used in over %d days or have never been used.",
				total, days),
			AffectedItems:  items,
			Recommendation: "Disable or remove unused accounts to reduce the attack surface.",
		}, nil
	}
}

// CheckExcessDomainAdmins flags a Domain Admins membership above the
// accepted ceiling of five accounts.
func CheckExcessDomainAdmins(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	privileged, err := conn.GetPrivilegedUsers(ctx)
	if err != nil {
		return nil, err
	}

	admins := membersOf(privileged, "Domain Admins")
	if len(admins) <= domainAdminLimit {
		return nil, nil
	}

	items := make([]audit.AffectedItem, 0, maxAdminItems)
	for _, dn := range admins {
		if len(items) == maxAdminItems {
			break
		}
		items = append(items, audit.DNRef{DN: dn})
	}
	return &audit.Finding{
		Severity: audit.SeverityHigh,
		Title:    "Too many Domain Admins accounts",
		Description: fmt.Sprintf("%d accounts hold Domain Admin rights. Recommended maximum: 3-5 accounts.",
			len(admins)),
		AffectedItems:  items,
		Recommendation: "Reduce the number of Domain Admins. Use delegated groups for specific tasks.",
	}, nil
}

// CheckEnterpriseAdminsPresent flags any Enterprise Admins membership at
// all; unlike Domain Admins there is no tolerated count.
func CheckEnterpriseAdminsPresent(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	privileged, err := conn.GetPrivilegedUsers(ctx)
	if err != nil {
		return nil, err
	}

	admins := membersOf(privileged, "Enterprise Admins")
	if len(admins) == 0 {
		return nil, nil
	}

	items := make([]audit.AffectedItem, 0, len(admins))
	for _, dn := range admins {
		items = append(items, audit.DNRef{DN: dn})
	}
	return &audit.Finding{
		Severity: audit.SeverityCritical,
		Title:    "Enterprise Admins accounts detected",
		Description: fmt.Sprintf("%d accounts hold Enterprise Admin rights. These accounts should only be used exceptionally.",
			len(admins)),
		AffectedItems:  items,
		Recommendation: "Reserve Enterprise Admin accounts strictly for forest-level changes. Disable them when unused.",
	}, nil
}

// CheckPasswordNeverExpires flags accounts carrying the DONT_EXPIRE_PASSWORD
// control bit.
func CheckPasswordNeverExpires(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	users, err := conn.SearchUsers(ctx, "", nil)
	if err != nil {
		return nil, err
	}

	total := 0
	items := make([]audit.AffectedItem, 0)
	for _, user := range users {
		uac, ok := parseUAC(user.Get("userAccountControl", "0"))
		if !ok || uac&uacDontExpirePassword == 0 {
			continue
		}
		total++
		if len(items) < maxNeverExpireItems {
			items = append(items, audit.UserStatus{
				Username: user.Get("sAMAccountName", "Unknown"),
				Status:   "Password never expires flag set",
			})
		}
	}

	if total == 0 {
		return nil, nil
	}
	return &audit.Finding{
		Severity:       audit.SeverityMedium,
		Title:          "Accounts with permanent passwords",
		Description:    fmt.Sprintf("%d accounts have passwords configured to never expire.", total),
		AffectedItems:  items,
		Recommendation: "Enforce password expiration for all accounts except service accounts (and store those in a secure vault).",
	}, nil
}

// CheckDisabledPrivilegedAccounts cross-references privileged-group
// membership against per-member account-control lookups; disabled members
// are flagged. Individual lookup failures are skipped, not fatal.
func CheckDisabledPrivilegedAccounts(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	privileged, err := conn.GetPrivilegedUsers(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]audit.AffectedItem, 0)
	for _, member := range privileged {
		entries, err := conn.SearchBase(ctx, member.UserDN, "(objectClass=user)",
			[]string{"sAMAccountName", "userAccountControl"})
		if err != nil || len(entries) == 0 {
			continue
		}
		uac, ok := parseUAC(entries[0].Get("userAccountControl", "0"))
		if !ok || uac&uacAccountDisable == 0 {
			continue
		}
		items = append(items, audit.PrivilegedMember{
			Username: entries[0].Get("sAMAccountName", "Unknown"),
			UserDN:   member.UserDN,
			Group:    member.Group,
		})
	}

	if len(items) == 0 {
		return nil, nil
	}
	return &audit.Finding{
		Severity:       audit.SeverityLow,
		Title:          "Disabled accounts in privileged groups",
		Description:    fmt.Sprintf("%d disabled accounts are still members of privileged groups.", len(items)),
		AffectedItems:  items,
		Recommendation: "Remove disabled accounts from privileged groups to maintain good security hygiene.",
	}, nil
}

// CheckPasswordPolicy compares the effective minimum password length against
// the 12-character floor and aggregates every gap into one finding.
func CheckPasswordPolicy(ctx context.Context, conn directory.Connector) (*audit.Finding, error) {
	info, err := conn.GetDomainInfo(ctx)
	if err != nil {
		return nil, err
	}

	minLength := info.MinPwdLength
	if minLength == 0 {
		minLength = assumedMinPwdLength
	}

	items := make([]audit.AffectedItem, 0, 1)
	if minLength < minPasswordLengthFloor {
		items = append(items, audit.PolicyGap{
			Policy:      "Minimum password length",
			Current:     strconv.Itoa(minLength),
			Recommended: "14+ characters",
		})
	}

	if len(items) == 0 {
		return nil, nil
	}
	return &audit.Finding{
		Severity:       audit.SeverityHigh,
		Title:          "Weak password policy",
		Description:    "The password policy does not meet current best practices.",
		AffectedItems:  items,
		Recommendation: "Raise the minimum password length to at least 14 characters and enable password complexity.",
	}, nil
}

func membersOf(privileged []directory.PrivilegedUser, group string) []string {
	members := make([]string, 0)
	for _, p := range privileged {
		if p.Group == group {
			members = append(members, p.UserDN)
		}
	}
	return members
}
