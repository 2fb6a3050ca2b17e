// Package domain defines the rotation data model: the closed set of credential kinds,
// their per-kind configuration variants, rotation definitions and generated credentials.
package domain

import (
	"fmt"
)

// Kind identifies a credential kind the engine can rotate. The set is closed; every
// switch over Kind must handle each value.
type Kind string

const (
	// KindServiceToken rotates API tokens issued by a SaaS REST API.
	KindServiceToken Kind = "service-token"

	// KindDatabaseUser alternates the passwords of two database users.
	KindDatabaseUser Kind = "database-user"

	// KindUnixAccount resets the password of an operating system account over SSH.
	KindUnixAccount Kind = "unix-account"
)

// Kinds lists every supported kind.
var Kinds = []Kind{KindServiceToken, KindDatabaseUser, KindUnixAccount}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
}

// Ordering is the order in which a kind replaces a live credential.
type Ordering int

const (
	// IssueThenRevoke issues the new credential, persists it, then revokes the old one.
	// Both credentials are valid for a short overlap window.
	IssueThenRevoke Ordering = iota

	// RevokeThenIssue revokes the old credential before issuing its replacement. Used
	// when the remote system holds exactly one credential per account.
	RevokeThenIssue
)

func (o Ordering) String() string {
	switch o {
	case IssueThenRevoke:
		return "issue-then-revoke"
	case RevokeThenIssue:
		return "revoke-then-issue"
	default:
		return fmt.Sprintf("ordering(%d)", int(o))
	}
}

// Ordering returns the declared replacement order of the kind.
func (k Kind) Ordering() Ordering {
	switch k {
	case KindServiceToken, KindDatabaseUser:
		return IssueThenRevoke
	case KindUnixAccount:
		return RevokeThenIssue
	default:
		panic(fmt.Sprintf("unhandled rotation kind %q", string(k)))
	}
}
