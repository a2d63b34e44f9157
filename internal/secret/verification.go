package secret

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CredentialStatus records whether previously-supplied credentials
// actually authenticated. A connection starts Unverified; a successful
// authentication marks it Verified and wipes the failure history, a
// failed one increments the failure count regardless of prior state.
type CredentialStatus struct {
	Verified     bool       `json:"verified"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	FailedAt     *time.Time `json:"failed_at,omitempty"`
	FailureCount uint32     `json:"failure_count"`
	LastError    string     `json:"last_error,omitempty"`
}

// MarkVerified transitions to Verified, resetting the failure count and
// clearing the last error.
func (s *CredentialStatus) MarkVerified() {
	now := time.Now().UTC()
	s.Verified = true
	s.VerifiedAt = &now
	s.FailureCount = 0
	s.LastError = ""
}

// MarkUnverified transitions to Unverified, incrementing the failure
// count and recording the error.
func (s *CredentialStatus) MarkUnverified(errMsg string) {
	now := time.Now().UTC()
	s.Verified = false
	s.FailedAt = &now
	s.FailureCount++
	s.LastError = errMsg
}

// IsVerified reports whether the credentials are verified.
func (s *CredentialStatus) IsVerified() bool {
	return s.Verified
}

// HasFailures reports whether any authentication failure is on record.
func (s *CredentialStatus) HasFailures() bool {
	return s.FailureCount > 0
}

// VerifiedCredentials pairs resolved credentials with their
// verification status so callers can decide whether to prompt.
type VerifiedCredentials struct {
	Username string
	Password Secret
	Domain   string
	Status   CredentialStatus
}

// CanUseAutomatically reports whether the credentials may be used
// without prompting: verified AND a password is present. Verified but
// passwordless credentials always require a prompt.
func (v *VerifiedCredentials) CanUseAutomatically() bool {
	return v.Status.IsVerified() && v.Password != ""
}

// ShouldShowDialog is the GUI decision contract: prompt unless the
// credentials can be used automatically.
func (v *VerifiedCredentials) ShouldShowDialog() bool {
	return !v.CanUseAutomatically()
}

// HasPassword reports whether a password is present.
func (v *VerifiedCredentials) HasPassword() bool {
	return v.Password != ""
}

// DialogPreFill carries the values to pre-fill in a credential prompt
// when the dialog still has to be shown.
type DialogPreFill struct {
	Username       string
	Domain         string
	ConnectionName string
}

// PreFillFromConnection builds prompt pre-fill data from connection
// settings.
func PreFillFromConnection(conn *Connection) DialogPreFill {
	return DialogPreFill{
		Username:       conn.Username,
		Domain:         conn.Domain,
		ConnectionName: conn.Name,
	}
}

// PreFillFromCredentials builds prompt pre-fill data from resolved but
// not automatically usable credentials.
func PreFillFromCredentials(creds *VerifiedCredentials, connectionName string) DialogPreFill {
	return DialogPreFill{
		Username:       creds.Username,
		Domain:         creds.Domain,
		ConnectionName: connectionName,
	}
}

// HasPreFillData reports whether any field would be pre-filled.
func (d *DialogPreFill) HasPreFillData() bool {
	return d.Username != "" || d.Domain != ""
}

// VerificationManager is the per-connection trust ledger. It tracks
// verification independently of which backend supplied the secret and
// serializes to a map of connection ID to status for cross-session
// persistence.
type VerificationManager struct {
	mu       sync.RWMutex
	statuses map[uuid.UUID]*CredentialStatus
}

// NewVerificationManager creates an empty ledger.
func NewVerificationManager() *VerificationManager {
	return &VerificationManager{statuses: make(map[uuid.UUID]*CredentialStatus)}
}

func (m *VerificationManager) status(connectionID uuid.UUID) *CredentialStatus {
	s, ok := m.statuses[connectionID]
	if !ok {
		s = &CredentialStatus{}
		m.statuses[connectionID] = s
	}
	return s
}

// MarkVerified records a successful authentication for a connection.
func (m *VerificationManager) MarkVerified(connectionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status(connectionID).MarkVerified()
}

// MarkUnverified records a failed authentication for a connection.
func (m *VerificationManager) MarkUnverified(connectionID uuid.UUID, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status(connectionID).MarkUnverified(errMsg)
}

// IsVerified reports whether a connection's credentials are verified.
func (m *VerificationManager) IsVerified(connectionID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[connectionID]
	return ok && s.IsVerified()
}

// GetStatus returns a copy of the status for a connection, or the
// zero (unverified) status when untracked.
func (m *VerificationManager) GetStatus(connectionID uuid.UUID) CredentialStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.statuses[connectionID]; ok {
		return *s
	}
	return CredentialStatus{}
}

// SetStatus replaces the status for a connection.
func (m *VerificationManager) SetStatus(connectionID uuid.UUID, status CredentialStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[connectionID] = &status
}

// Remove drops the status for a connection; called when the connection
// is deleted.
func (m *VerificationManager) Remove(connectionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, connectionID)
}

// Clear drops every tracked status.
func (m *VerificationManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = make(map[uuid.UUID]*CredentialStatus)
}

// Len returns the number of tracked connections.
func (m *VerificationManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statuses)
}

// VerifiedConnections returns every connection ID currently Verified.
func (m *VerificationManager) VerifiedConnections() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uuid.UUID
	for id, s := range m.statuses {
		if s.IsVerified() {
			ids = append(ids, id)
		}
	}
	return ids
}

// FailedConnections returns every connection ID with at least one
// recorded failure.
func (m *VerificationManager) FailedConnections() []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []uuid.UUID
	for id, s := range m.statuses {
		if s.HasFailures() {
			ids = append(ids, id)
		}
	}
	return ids
}

// MarshalJSON serializes the ledger as a map of connection ID to status.
func (m *VerificationManager) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(m.statuses)
}

// UnmarshalJSON replaces the ledger contents from a serialized map.
func (m *VerificationManager) UnmarshalJSON(data []byte) error {
	statuses := make(map[uuid.UUID]*CredentialStatus)
	if err := json.Unmarshal(data, &statuses); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = statuses
	return nil
}
