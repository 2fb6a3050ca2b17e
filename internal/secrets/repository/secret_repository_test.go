package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/rotator/internal/errors"
	secretsDomain "github.com/allisson/rotator/internal/secrets/domain"
)

var secretCols = []string{
	"id", "project_id", "environment", "path", "secret_key", "version", "ciphertext", "created_by", "created_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var (
	testScope = secretsDomain.Scope{ProjectID: "billing", Environment: "prod", Path: "/db"}
	testNow   = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func sampleSecret() *secretsDomain.Secret {
	return &secretsDomain.Secret{
		ID:          uuid.Must(uuid.NewV7()),
		ProjectID:   "billing",
		Environment: "prod",
		Path:        "/db",
		Key:         "DB_PASSWORD",
		Version:     3,
		Ciphertext:  []byte("blob"),
		CreatedBy:   "system:rotation-engine",
		CreatedAt:   testNow,
	}
}

func TestPostgreSQLSecretRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_Create", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLSecretRepository(db)
		secret := sampleSecret()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO secrets")).
			WithArgs(secret.ID, "billing", "prod", "/db", "DB_PASSWORD", 3, []byte("blob"),
				"system:rotation-engine", testNow).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, secret))
	})

	t.Run("Error_CreateDuplicateVersion", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLSecretRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO secrets")).
			WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "secrets_version_key"`))

		err := repo.Create(ctx, sampleSecret())
		assert.ErrorIs(t, err, secretsDomain.ErrVersionConflict)
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("Success_GetLatest", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLSecretRepository(db)
		secret := sampleSecret()

		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY version DESC")).
			WithArgs("billing", "prod", "/db", "DB_PASSWORD").
			WillReturnRows(sqlmock.NewRows(secretCols).AddRow(
				secret.ID.String(), "billing", "prod", "/db", "DB_PASSWORD", 3, []byte("blob"),
				"system:rotation-engine", testNow,
			))

		got, err := repo.GetLatest(ctx, testScope, "DB_PASSWORD")
		require.NoError(t, err)
		assert.Equal(t, secret.ID, got.ID)
		assert.Equal(t, uint(3), got.Version)
		assert.Equal(t, []byte("blob"), got.Ciphertext)
	})

	t.Run("Error_GetLatestNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLSecretRepository(db)

		mock.ExpectQuery("FROM secrets").WillReturnError(sql.ErrNoRows)

		_, err := repo.GetLatest(ctx, testScope, "MISSING")
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Success_ListLatest", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLSecretRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT ON (secret_key)")).
			WithArgs("billing", "prod", "/db").
			WillReturnRows(sqlmock.NewRows(secretCols).
				AddRow(uuid.NewString(), "billing", "prod", "/db", "DB_PASSWORD", 3, []byte("a"), "user:c1", testNow).
				AddRow(uuid.NewString(), "billing", "prod", "/db", "DB_USERNAME", 1, []byte("b"), "user:c1", testNow))

		secrets, err := repo.ListLatest(ctx, testScope)
		require.NoError(t, err)
		require.Len(t, secrets, 2)
		assert.Equal(t, "DB_PASSWORD", secrets[0].Key)
		assert.Equal(t, "DB_USERNAME", secrets[1].Key)
	})

	t.Run("Success_ListLatestEmpty", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLSecretRepository(db)

		mock.ExpectQuery("FROM secrets").WillReturnRows(sqlmock.NewRows(secretCols))

		secrets, err := repo.ListLatest(ctx, testScope)
		require.NoError(t, err)
		assert.NotNil(t, secrets)
		assert.Empty(t, secrets)
	})
}

func TestMySQLSecretRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_CreateBinaryID", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLSecretRepository(db)
		secret := sampleSecret()
		rawID, _ := secret.ID.MarshalBinary()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO secrets")).
			WithArgs(rawID, "billing", "prod", "/db", "DB_PASSWORD", 3, []byte("blob"),
				"system:rotation-engine", testNow).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, secret))
	})

	t.Run("Error_CreateDuplicateEntry", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLSecretRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO secrets")).
			WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

		assert.ErrorIs(t, repo.Create(ctx, sampleSecret()), secretsDomain.ErrVersionConflict)
	})

	t.Run("Success_ListLatest", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLSecretRepository(db)
		secret := sampleSecret()
		rawID, _ := secret.ID.MarshalBinary()

		mock.ExpectQuery(regexp.QuoteMeta("GROUP BY secret_key")).
			WithArgs("billing", "prod", "/db", "billing", "prod", "/db").
			WillReturnRows(sqlmock.NewRows(secretCols).
				AddRow(rawID, "billing", "prod", "/db", "DB_PASSWORD", 3, []byte("blob"), "user:c1", testNow))

		secrets, err := repo.ListLatest(ctx, testScope)
		require.NoError(t, err)
		require.Len(t, secrets, 1)
		assert.Equal(t, secret.ID, secrets[0].ID)
	})

	t.Run("Error_GetLatestNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLSecretRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("secret_key = ?")).
			WithArgs("billing", "prod", "/db", "MISSING").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetLatest(ctx, testScope, "MISSING")
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
	})
}
