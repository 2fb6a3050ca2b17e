package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/rotator/internal/errors"
)

func TestDecodeConfig(t *testing.T) {
	t.Run("Success_ServiceToken", func(t *testing.T) {
		cfg, err := DecodeConfig(
			KindServiceToken,
			json.RawMessage(`{"tokenName":"ci","scopes":["read","write"],"ttlSeconds":3600}`),
			json.RawMessage(`{"token":"API_TOKEN","tokenId":"API_TOKEN_ID"}`),
		)
		require.NoError(t, err)

		st, ok := cfg.(ServiceTokenConfig)
		require.True(t, ok)
		assert.Equal(t, "ci", st.Parameters.TokenName)
		assert.Equal(t, []string{"read", "write"}, st.Parameters.Scopes)
		assert.Equal(t, "API_TOKEN_ID", st.Mapping.TokenID)
		assert.Equal(t, KindServiceToken, cfg.Kind())
	})

	t.Run("Success_DatabaseUserDefaultsPasswordLength", func(t *testing.T) {
		cfg, err := DecodeConfig(
			KindDatabaseUser,
			json.RawMessage(`{"username1":"app_a","username2":"app_b"}`),
			json.RawMessage(`{"username":"DB_USER","password":"DB_PASSWORD"}`),
		)
		require.NoError(t, err)
		db := cfg.(DatabaseUserConfig)
		assert.Equal(t, DefaultPasswordLength, db.Parameters.PasswordLength)
	})

	t.Run("Success_UnixAccount", func(t *testing.T) {
		cfg, err := DecodeConfig(
			KindUnixAccount,
			json.RawMessage(`{"username":"deploy","passwordLength":40}`),
			json.RawMessage(`{"username":"SSH_USER","password":"SSH_PASSWORD"}`),
		)
		require.NoError(t, err)
		assert.Equal(t, 40, cfg.(UnixAccountConfig).Parameters.PasswordLength)
	})

	t.Run("Error_MissingRequiredField", func(t *testing.T) {
		_, err := DecodeConfig(
			KindServiceToken,
			json.RawMessage(`{"scopes":["read"]}`),
			json.RawMessage(`{"token":"A","tokenId":"B"}`),
		)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Contains(t, err.Error(), "tokenName")
	})

	t.Run("Error_UnknownMappingField", func(t *testing.T) {
		_, err := DecodeConfig(
			KindUnixAccount,
			json.RawMessage(`{"username":"deploy"}`),
			json.RawMessage(`{"username":"U","password":"P","extra":"X"}`),
		)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("Error_InvalidUnixUsername", func(t *testing.T) {
		_, err := DecodeConfig(
			KindUnixAccount,
			json.RawMessage(`{"username":"root; rm -rf /"}`),
			json.RawMessage(`{"username":"U","password":"P"}`),
		)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("Error_SameDatabaseUsers", func(t *testing.T) {
		_, err := DecodeConfig(
			KindDatabaseUser,
			json.RawMessage(`{"username1":"app","username2":"app"}`),
			json.RawMessage(`{"username":"U","password":"P"}`),
		)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("Error_EmptyDocument", func(t *testing.T) {
		_, err := DecodeConfig(KindServiceToken, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("Error_UnsupportedKind", func(t *testing.T) {
		_, err := DecodeConfig(Kind("ldap"), json.RawMessage(`{}`), json.RawMessage(`{}`))
		assert.ErrorIs(t, err, ErrUnsupportedKind)
	})
}

func TestDecodeConnectionConfig(t *testing.T) {
	t.Run("Success_ServiceToken", func(t *testing.T) {
		cfg, err := DecodeConnectionConfig(
			KindServiceToken,
			[]byte(`{"baseUrl":"https://api.example.com","apiToken":"t"}`),
		)
		require.NoError(t, err)
		assert.Equal(t, "https://api.example.com", cfg.(ServiceTokenConnection).BaseURL)
	})

	t.Run("Success_UnixDefaultPort", func(t *testing.T) {
		cfg, err := DecodeConnectionConfig(
			KindUnixAccount,
			[]byte(`{"host":"10.0.0.5","user":"admin","privateKey":"k","hostKey":"h"}`),
		)
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.5:22", cfg.(UnixConnection).Address())
	})

	t.Run("Error_UnsupportedDriver", func(t *testing.T) {
		_, err := DecodeConnectionConfig(KindDatabaseUser, []byte(`{"driver":"sqlite","dsn":"x"}`))
		assert.ErrorIs(t, err, ErrInvalidConnection)
	})
}
