package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// MaxCredentials bounds a credential set: the active credential plus, during an
// overlap, the previous one awaiting revocation.
const MaxCredentials = 2

// redacted replaces secret material in logs and fmt output.
const redacted = "[REDACTED]"

// GeneratedCredential is a credential issued by a remote system.
type GeneratedCredential struct {
	// ExternalID is the identifier assigned by the remote system.
	ExternalID string `json:"externalId"`
	// Username is the account the credential belongs to, when the kind has one.
	Username string `json:"username,omitempty"`
	// Secret is the token or password. It only leaves the encryption boundary
	// through the secrets mapping.
	Secret string `json:"secret"`
	// DisplayName is the name the credential carries remotely.
	DisplayName string    `json:"displayName"`
	IssuedAt    time.Time `json:"issuedAt"`
}

// LogValue keeps the secret out of structured logs.
func (c GeneratedCredential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("external_id", c.ExternalID),
		slog.String("username", c.Username),
		slog.String("display_name", c.DisplayName),
		slog.String("secret", redacted),
	)
}

// String keeps the secret out of fmt output.
func (c GeneratedCredential) String() string {
	return fmt.Sprintf("credential(%s %s)", c.ExternalID, redacted)
}

// GoString keeps the secret out of %#v output.
func (c GeneratedCredential) GoString() string {
	return c.String()
}

// CredentialSet holds the live credentials of a rotation; index 0 is active.
type CredentialSet []GeneratedCredential

// Validate enforces the 1..2 bound.
func (s CredentialSet) Validate() error {
	if len(s) == 0 || len(s) > MaxCredentials {
		return fmt.Errorf("%w: %d credentials", ErrInvalidCredentialSet, len(s))
	}
	return nil
}

// Active returns the current credential.
func (s CredentialSet) Active() (GeneratedCredential, bool) {
	if len(s) == 0 {
		return GeneratedCredential{}, false
	}
	return s[0], true
}

// Stale returns credentials kept only because their revocation has not succeeded yet.
func (s CredentialSet) Stale() CredentialSet {
	if len(s) <= 1 {
		return nil
	}
	return s[1:]
}

// ExternalIDs lists the remote identifiers in order.
func (s CredentialSet) ExternalIDs() []string {
	ids := make([]string, 0, len(s))
	for _, c := range s {
		ids = append(ids, c.ExternalID)
	}
	return ids
}

// Marshal serializes the set for encryption.
func (s CredentialSet) Marshal() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// UnmarshalCredentialSet parses decrypted credential set bytes.
func UnmarshalCredentialSet(data []byte) (CredentialSet, error) {
	var set CredentialSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentialSet, err)
	}
	return set, set.Validate()
}

// SecretPayload is one destination secret produced from a credential set.
type SecretPayload struct {
	Key   string
	Value string
}

// LogValue keeps the value out of structured logs.
func (p SecretPayload) LogValue() slog.Value {
	return slog.GroupValue(slog.String("key", p.Key), slog.String("value", redacted))
}
