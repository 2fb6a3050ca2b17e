package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/rotator/internal/errors"
	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
)

func TestPostgreSQLConnectionRepository(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	conn := &rotationDomain.Connection{
		ID:                   uuid.Must(uuid.NewV7()),
		ProjectID:            "proj-1",
		Kind:                 rotationDomain.KindDatabaseUser,
		Name:                 "orders-db",
		EncryptedCredentials: []byte("blob"),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	t.Run("Success_Create", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLConnectionRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO connections")).
			WithArgs(conn.ID, "proj-1", "database-user", "orders-db", []byte("blob"), now, now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(context.Background(), conn))
	})

	t.Run("Error_CreateDuplicate", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLConnectionRepository(db)

		mock.ExpectExec("INSERT INTO connections").WillReturnError(errors.New("pq: duplicate key value"))

		assert.ErrorIs(t, repo.Create(context.Background(), conn), apperrors.ErrConflict)
	})

	t.Run("Success_Get", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLConnectionRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM connections WHERE id = $1")).
			WithArgs(conn.ID).
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "project_id", "kind", "name", "encrypted_credentials", "created_at", "updated_at"},
			).AddRow(conn.ID.String(), "proj-1", "database-user", "orders-db", []byte("blob"), now, now))

		got, err := repo.Get(context.Background(), conn.ID)
		require.NoError(t, err)
		assert.Equal(t, conn, got)
	})

	t.Run("Error_GetNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLConnectionRepository(db)

		mock.ExpectQuery("FROM connections").WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.Get(context.Background(), conn.ID)
		assert.ErrorIs(t, err, rotationDomain.ErrConnectionNotFound)
	})
}
