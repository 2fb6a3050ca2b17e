package domain

import (
	"encoding/json"
	"fmt"
)

// DefaultPasswordLength is used when a kind's parameters omit passwordLength.
const DefaultPasswordLength = 32

// Config is the validated, kind-specific configuration of a rotation. The concrete
// types are ServiceTokenConfig, DatabaseUserConfig and UnixAccountConfig.
type Config interface {
	Kind() Kind
	isConfig()
}

// ServiceTokenParameters configures tokens issued by a REST token API.
type ServiceTokenParameters struct {
	TokenName  string   `json:"tokenName"`
	Scopes     []string `json:"scopes,omitempty"`
	TTLSeconds int      `json:"ttlSeconds,omitempty"`
}

// ServiceTokenMapping names the destination secret keys.
type ServiceTokenMapping struct {
	Token   string `json:"token"`
	TokenID string `json:"tokenId"`
}

type ServiceTokenConfig struct {
	Parameters ServiceTokenParameters
	Mapping    ServiceTokenMapping
}

func (ServiceTokenConfig) Kind() Kind { return KindServiceToken }
func (ServiceTokenConfig) isConfig()  {}

// DatabaseUserParameters names the two pre-existing users that alternate.
type DatabaseUserParameters struct {
	Username1      string `json:"username1"`
	Username2      string `json:"username2"`
	PasswordLength int    `json:"passwordLength,omitempty"`
}

// UserPasswordMapping names the destination secret keys for username/password kinds.
type UserPasswordMapping struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type DatabaseUserConfig struct {
	Parameters DatabaseUserParameters
	Mapping    UserPasswordMapping
}

func (DatabaseUserConfig) Kind() Kind { return KindDatabaseUser }
func (DatabaseUserConfig) isConfig()  {}

// UnixAccountParameters names the account whose password is reset.
type UnixAccountParameters struct {
	Username       string `json:"username"`
	PasswordLength int    `json:"passwordLength,omitempty"`
}

type UnixAccountConfig struct {
	Parameters UnixAccountParameters
	Mapping    UserPasswordMapping
}

func (UnixAccountConfig) Kind() Kind { return KindUnixAccount }
func (UnixAccountConfig) isConfig()  {}

// DecodeConfig validates parameters and mapping against the kind's schemas and decodes
// them into the kind's Config variant.
func DecodeConfig(kind Kind, parameters, mapping json.RawMessage) (Config, error) {
	s, err := schemasFor(kind)
	if err != nil {
		return nil, err
	}
	if err := validateDocument(s.parameters, parameters, "parameters", ErrInvalidConfig); err != nil {
		return nil, err
	}
	if err := validateDocument(s.mapping, mapping, "secretsMapping", ErrInvalidConfig); err != nil {
		return nil, err
	}

	switch kind {
	case KindServiceToken:
		var cfg ServiceTokenConfig
		if err := decodePair(parameters, mapping, &cfg.Parameters, &cfg.Mapping); err != nil {
			return nil, err
		}
		return cfg, nil
	case KindDatabaseUser:
		var cfg DatabaseUserConfig
		if err := decodePair(parameters, mapping, &cfg.Parameters, &cfg.Mapping); err != nil {
			return nil, err
		}
		if cfg.Parameters.Username1 == cfg.Parameters.Username2 {
			return nil, fmt.Errorf("%w: username1 and username2 must differ", ErrInvalidConfig)
		}
		if cfg.Parameters.PasswordLength == 0 {
			cfg.Parameters.PasswordLength = DefaultPasswordLength
		}
		return cfg, nil
	case KindUnixAccount:
		var cfg UnixAccountConfig
		if err := decodePair(parameters, mapping, &cfg.Parameters, &cfg.Mapping); err != nil {
			return nil, err
		}
		if cfg.Parameters.PasswordLength == 0 {
			cfg.Parameters.PasswordLength = DefaultPasswordLength
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, string(kind))
	}
}

func decodePair(parameters, mapping json.RawMessage, p, m any) error {
	if err := json.Unmarshal(parameters, p); err != nil {
		return fmt.Errorf("%w: parameters: %v", ErrInvalidConfig, err)
	}
	if err := json.Unmarshal(mapping, m); err != nil {
		return fmt.Errorf("%w: secretsMapping: %v", ErrInvalidConfig, err)
	}
	return nil
}
