package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Connection holds the encrypted credentials used to reach a remote system.
type Connection struct {
	ID        uuid.UUID
	ProjectID string
	Kind      Kind
	Name      string
	// EncryptedCredentials is the envelope blob of the kind's connection JSON.
	EncryptedCredentials []byte
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ConnectionConfig is the decrypted connection payload of one kind. The concrete
// types are ServiceTokenConnection, DatabaseConnection and UnixConnection.
type ConnectionConfig interface {
	Kind() Kind
	isConnectionConfig()
}

// ServiceTokenConnection reaches a token REST API.
type ServiceTokenConnection struct {
	BaseURL  string `json:"baseUrl"`
	APIToken string `json:"apiToken"` //nolint:gosec // decrypted only in memory
}

func (ServiceTokenConnection) Kind() Kind          { return KindServiceToken }
func (ServiceTokenConnection) isConnectionConfig() {}

// DatabaseConnection reaches a database as a user allowed to alter the rotated users.
type DatabaseConnection struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

func (DatabaseConnection) Kind() Kind          { return KindDatabaseUser }
func (DatabaseConnection) isConnectionConfig() {}

// UnixConnection reaches a host over SSH with public key authentication.
type UnixConnection struct {
	Host       string `json:"host"`
	Port       int    `json:"port,omitempty"`
	User       string `json:"user"`
	PrivateKey string `json:"privateKey"`
	// HostKey is the expected host public key in authorized_keys format.
	HostKey string `json:"hostKey"`
}

func (UnixConnection) Kind() Kind          { return KindUnixAccount }
func (UnixConnection) isConnectionConfig() {}

// Address returns host:port, defaulting to port 22.
func (c UnixConnection) Address() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return fmt.Sprintf("%s:%d", c.Host, port)
}

// ValidateConnectionConfig checks raw connection JSON against the kind's schema.
func ValidateConnectionConfig(kind Kind, data []byte) error {
	s, err := schemasFor(kind)
	if err != nil {
		return err
	}
	return validateDocument(s.connection, data, "credentials", ErrInvalidConnection)
}

// DecodeConnectionConfig validates and decodes decrypted connection JSON.
func DecodeConnectionConfig(kind Kind, data []byte) (ConnectionConfig, error) {
	if err := ValidateConnectionConfig(kind, data); err != nil {
		return nil, err
	}

	var cfg ConnectionConfig
	switch kind {
	case KindServiceToken:
		var c ServiceTokenConnection
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConnection, err)
		}
		cfg = c
	case KindDatabaseUser:
		var c DatabaseConnection
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConnection, err)
		}
		cfg = c
	case KindUnixAccount:
		var c UnixConnection
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConnection, err)
		}
		cfg = c
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, string(kind))
	}
	return cfg, nil
}
