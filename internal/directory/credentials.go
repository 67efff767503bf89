package directory

// Credentials holds the bind identity for one connector session. The
// password is kept as a mutable byte slice so it can be zeroed when the
// session ends, and every stringer/serialization path redacts it.
type Credentials struct {
	username string
	password []byte
}

// NewCredentials builds a credential pair for a directory bind.
func NewCredentials(username, password string) *Credentials {
	return &Credentials{
		username: username,
		password: []byte(password),
	}
}

// Username returns the bare account name (without domain qualifier).
func (c *Credentials) Username() string {
	if c == nil {
		return ""
	}
	return c.username
}

// Zero overwrites the password material. Safe to call more than once.
func (c *Credentials) Zero() {
	if c == nil {
		return
	}
	for i := range c.password {
		c.password[i] = 0
	}
	c.password = nil
}

// bindPassword exposes the secret to the connector only.
func (c *Credentials) bindPassword() string {
	if c == nil {
		return ""
	}
	return string(c.password)
}

// String implements fmt.Stringer with the password redacted.
func (c *Credentials) String() string {
	if c == nil {
		return ""
	}
	return c.username + ":[REDACTED]"
}

// MarshalJSON never emits the password.
func (c *Credentials) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte(`null`), nil
	}
	return []byte(`{"username":` + quoteJSON(c.username) + `,"password":"[REDACTED]"}`), nil
}

func quoteJSON(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		switch b := s[i]; b {
		case '"', '\\':
			out = append(out, '\\', b)
		default:
			out = append(out, b)
		}
	}
	return string(append(out, '"'))
}
