package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/rotator/internal/errors"
)

func TestParseKind(t *testing.T) {
	t.Run("Success_AllKinds", func(t *testing.T) {
		for _, k := range Kinds {
			parsed, err := ParseKind(string(k))
			require.NoError(t, err)
			assert.Equal(t, k, parsed)
		}
	})

	t.Run("Error_Unknown", func(t *testing.T) {
		_, err := ParseKind("ldap-user")
		assert.ErrorIs(t, err, ErrUnsupportedKind)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestKind_Ordering(t *testing.T) {
	assert.Equal(t, IssueThenRevoke, KindServiceToken.Ordering())
	assert.Equal(t, IssueThenRevoke, KindDatabaseUser.Ordering())
	assert.Equal(t, RevokeThenIssue, KindUnixAccount.Ordering())
	assert.Equal(t, "revoke-then-issue", RevokeThenIssue.String())

	assert.Panics(t, func() { Kind("unknown").Ordering() })
}
