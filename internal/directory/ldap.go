package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	sharedErrors "github.com/adsecurecheck/adaudit/internal/shared/errors"
)

const (
	ldapPort  = 389
	ldapsPort = 636
)

// LDAPConnector binds one authenticated NTLM session to a directory server
// over LDAP or LDAPS. A mutex serializes all searches because a bound
// ldap.Conn is not safe for concurrent requests; this lets the parallel
// check runner share a single session.
type LDAPConnector struct {
	server string
	domain string
	creds  *Credentials
	useSSL bool
	baseDN string
	logger *zap.SugaredLogger

	mu   sync.Mutex
	conn *ldap.Conn

	// searchFn executes one subtree search. Defaults to the live session;
	// swappable so per-group failure handling can be exercised without a
	// directory server.
	searchFn searchFunc
}

type searchFunc func(ctx context.Context, baseDN, filter string, attributes []string) ([]Entry, error)

// NewLDAPConnector prepares a connector; no network activity happens until
// Connect.
func NewLDAPConnector(server, domain string, creds *Credentials, useSSL bool, logger *zap.SugaredLogger) *LDAPConnector {
	c := &LDAPConnector{
		server: server,
		domain: domain,
		creds:  creds,
		useSSL: useSSL,
		baseDN: BaseDN(domain),
		logger: logger,
	}
	c.searchFn = c.search
	return c
}

// ServerAddress returns the configured directory server address.
func (c *LDAPConnector) ServerAddress() string { return c.server }

// Domain returns the configured domain name.
func (c *LDAPConnector) Domain() string { return c.domain }

// Connect establishes and authenticates the session. Invalid credentials
// surface as ErrAuthentication, transport problems as ErrConnection.
func (c *LDAPConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrConnection, err)
	}

	var (
		conn *ldap.Conn
		err  error
	)
	if c.useSSL {
		url := fmt.Sprintf("ldaps://%s:%d", c.server, ldapsPort)
		// Certificate validation is skipped to match directory servers with
		// self-signed certs; operators should front this with a trusted CA.
		conn, err = ldap.DialURL(url, ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: true}))
	} else {
		url := fmt.Sprintf("ldap://%s:%d", c.server, ldapPort)
		conn, err = ldap.DialURL(url)
	}
	if err != nil {
		c.logger.Errorw("directory dial failed", "server", c.server, "error", err)
		return fmt.Errorf("%w: %v", sharedErrors.ErrConnection, err)
	}

	// NTLM bind with DOMAIN\username semantics.
	if err := conn.NTLMBind(c.domain, c.creds.Username(), c.creds.bindPassword()); err != nil {
		conn.Close()
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			c.logger.Errorw("directory bind rejected", "server", c.server, "user", c.creds.String())
			return fmt.Errorf("%w: %s", sharedErrors.ErrAuthentication, c.creds.String())
		}
		c.logger.Errorw("directory bind failed", "server", c.server, "error", err)
		return fmt.Errorf("%w: %v", sharedErrors.ErrConnection, err)
	}

	c.conn = conn
	c.logger.Infow("connected to directory", "server", c.server, "domain", c.domain, "ssl", c.useSSL)
	return nil
}

// Disconnect closes the session and zeroes the credentials. Idempotent and
// safe to call when Connect never succeeded.
func (c *LDAPConnector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.logger.Infow("disconnected from directory", "server", c.server)
	}
	c.creds.Zero()
}

// SearchUsers runs a subtree search for user objects under the base DN.
func (c *LDAPConnector) SearchUsers(ctx context.Context, filter string, attributes []string) ([]Entry, error) {
	if filter == "" {
		filter = "(objectClass=user)"
	}
	if attributes == nil {
		attributes = DefaultUserAttributes
	}
	entries, err := c.searchFn(ctx, c.baseDN, filter, attributes)
	if err != nil {
		return nil, err
	}
	c.logger.Debugw("user search complete", "filter", filter, "count", len(entries))
	return entries, nil
}

// SearchGroups runs a subtree search for group objects under the base DN.
func (c *LDAPConnector) SearchGroups(ctx context.Context, filter string, attributes []string) ([]Entry, error) {
	if filter == "" {
		filter = "(objectClass=group)"
	}
	if attributes == nil {
		attributes = DefaultGroupAttributes
	}
	entries, err := c.searchFn(ctx, c.baseDN, filter, attributes)
	if err != nil {
		return nil, err
	}
	c.logger.Debugw("group search complete", "filter", filter, "count", len(entries))
	return entries, nil
}

// SearchBase searches beneath an arbitrary DN, typically a single member DN.
func (c *LDAPConnector) SearchBase(ctx context.Context, baseDN, filter string, attributes []string) ([]Entry, error) {
	return c.searchFn(ctx, baseDN, filter, attributes)
}

// GetPrivilegedUsers aggregates membership of the well-known privileged
// group catalog. A group that fails to resolve is logged and skipped so the
// remaining groups still contribute.
func (c *LDAPConnector) GetPrivilegedUsers(ctx context.Context) ([]PrivilegedUser, error) {
	privileged := make([]PrivilegedUser, 0)

	for _, groupName := range privilegedGroups {
		filter := fmt.Sprintf("(&(objectClass=group)(sAMAccountName=%s))", ldap.EscapeFilter(groupName))
		entries, err := c.searchFn(ctx, c.baseDN, filter, []string{"member"})
		if err != nil {
			c.logger.Warnw("privileged group lookup failed", "group", groupName, "error", err)
			continue
		}
		if len(entries) == 0 {
			continue
		}
		for _, memberDN := range entries[0].Values("member") {
			privileged = append(privileged, PrivilegedUser{UserDN: memberDN, Group: groupName})
		}
	}

	c.logger.Infow("privileged membership collected", "count", len(privileged))
	return privileged, nil
}

// GetDomainInfo reads the domain object. When the query yields nothing (or
// fails) it degrades to the locally known domain name and derived base DN.
func (c *LDAPConnector) GetDomainInfo(ctx context.Context) (DomainInfo, error) {
	fallback := DomainInfo{DomainName: c.domain, BaseDN: c.baseDN}

	entries, err := c.searchFn(ctx, c.baseDN, "(objectClass=domain)",
		[]string{"name", "distinguishedName", "whenCreated", "minPwdLength", "maxPwdAge"})
	if err != nil {
		c.logger.Warnw("domain info query failed, using derived values", "error", err)
		return fallback, nil
	}
	if len(entries) == 0 {
		return fallback, nil
	}

	entry := entries[0]
	info := DomainInfo{
		DomainName:        entry.Get("name", c.domain),
		DistinguishedName: entry.Get("distinguishedName", ""),
		BaseDN:            c.baseDN,
	}
	if raw := entry.Get("minPwdLength", ""); raw != "" {
		var n int
		if _, err := fmt.Sscanf(raw, "%d", &n); err == nil {
			info.MinPwdLength = n
		}
	}
	return info, nil
}

// TestConnection performs a full connect / domain query / disconnect cycle.
func (c *LDAPConnector) TestConnection(ctx context.Context) (DomainInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return DomainInfo{}, err
	}
	defer c.Disconnect()
	return c.GetDomainInfo(ctx)
}

func (c *LDAPConnector) search(ctx context.Context, baseDN, filter string, attributes []string) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, sharedErrors.ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrQuery, err)
	}

	req := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		attributes,
		nil,
	)

	res, err := c.conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search %q under %q: %v", sharedErrors.ErrQuery, filter, baseDN, err)
	}

	entries := make([]Entry, 0, len(res.Entries))
	for _, raw := range res.Entries {
		entry := Entry{}
		for _, attr := range attributes {
			if vals := raw.GetAttributeValues(attr); len(vals) > 0 {
				entry[attr] = vals
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
