package secret

// Secret is a string that refuses to print itself. Values pass through
// fmt and %v as a redaction marker; code that genuinely needs the raw
// value calls Expose.
type Secret string

// Expose returns the raw secret value.
func (s Secret) Expose() string {
	return string(s)
}

// String implements fmt.Stringer with a redaction marker.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString keeps %#v output redacted as well.
func (s Secret) GoString() string {
	return "secret.Secret(\"[REDACTED]\")"
}

// Credentials is the resolved credential set for a single connection.
// Instances are created transiently per resolution and live only in the
// external backend or the manager's session cache.
type Credentials struct {
	Username      string
	Password      Secret
	KeyPassphrase Secret
	Domain        string
}

// HasPassword reports whether a password is present.
func (c *Credentials) HasPassword() bool {
	return c != nil && c.Password != ""
}

// IsEmpty reports whether no field is set.
func (c *Credentials) IsEmpty() bool {
	return c == nil || (c.Username == "" && c.Password == "" && c.KeyPassphrase == "" && c.Domain == "")
}

// Clone returns a copy, or nil for nil input.
func (c *Credentials) Clone() *Credentials {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// CredentialUpdate is a partial patch applied to existing credentials.
// Zero-valued fields keep the existing value. ClearPassword removes the
// password even when Password is set in the same update: the clear flag
// expresses destructive intent and always wins.
type CredentialUpdate struct {
	Username      string
	Password      Secret
	HasPassword   bool
	Domain        string
	ClearPassword bool
}

// WithUsername sets the new username.
func (u CredentialUpdate) WithUsername(username string) CredentialUpdate {
	u.Username = username
	return u
}

// WithPassword sets the new password.
func (u CredentialUpdate) WithPassword(password string) CredentialUpdate {
	u.Password = Secret(password)
	u.HasPassword = true
	return u
}

// WithDomain sets the new domain.
func (u CredentialUpdate) WithDomain(domain string) CredentialUpdate {
	u.Domain = domain
	return u
}

// WithClearPassword marks the password for removal.
func (u CredentialUpdate) WithClearPassword() CredentialUpdate {
	u.ClearPassword = true
	return u
}

// Apply merges the update over existing credentials and returns the result.
// The existing key passphrase is always preserved; updates never touch it.
func (u CredentialUpdate) Apply(existing *Credentials) *Credentials {
	out := existing.Clone()
	if out == nil {
		out = &Credentials{}
	}

	if u.Username != "" {
		out.Username = u.Username
	}
	if u.Domain != "" {
		out.Domain = u.Domain
	}

	switch {
	case u.ClearPassword:
		out.Password = ""
	case u.HasPassword:
		out.Password = u.Password
	}

	return out
}
