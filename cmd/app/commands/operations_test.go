package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	"github.com/allisson/rotator/internal/license"
	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
	rotationMocks "github.com/allisson/rotator/internal/rotation/usecase/mocks"
)

func TestRunRotate(t *testing.T) {
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	next := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	rotation := &rotationDomain.Rotation{ID: id, Status: rotationDomain.StatusActive, NextRotationAt: &next}

	t.Run("Success_Text", func(t *testing.T) {
		uc := rotationMocks.NewMockRotationUseCase(t)
		uc.On("Rotate", ctx, authDomain.SystemActor, id).
			Return(&rotationDomain.RotationResult{Rotation: rotation}, nil)

		var out bytes.Buffer
		require.NoError(t, RunRotate(ctx, uc, discardLogger(), IOTuple{Writer: &out}, id.String(), formatText))
		assert.Contains(t, out.String(), "Status: active")
		assert.Contains(t, out.String(), "Next rotation: 2026-04-01T00:00:00Z")
	})

	t.Run("Success_JSONWithRevokeError", func(t *testing.T) {
		uc := rotationMocks.NewMockRotationUseCase(t)
		uc.On("Rotate", ctx, authDomain.SystemActor, id).Return(&rotationDomain.RotationResult{
			Rotation:    rotation,
			RevokeError: errors.New("remote timeout"),
		}, nil)

		var out bytes.Buffer
		require.NoError(t, RunRotate(ctx, uc, discardLogger(), IOTuple{Writer: &out}, id.String(), formatJSON))
		assert.Contains(t, out.String(), `"revoke_error": "remote timeout"`)
		assert.Contains(t, out.String(), `"next_rotation_at": "2026-04-01T00:00:00Z"`)
	})

	t.Run("Error_InvalidID", func(t *testing.T) {
		uc := rotationMocks.NewMockRotationUseCase(t)
		err := RunRotate(ctx, uc, discardLogger(), IOTuple{Writer: &bytes.Buffer{}}, "nope", formatText)
		assert.ErrorContains(t, err, "invalid rotation ID format")
	})

	t.Run("Error_InProgress", func(t *testing.T) {
		uc := rotationMocks.NewMockRotationUseCase(t)
		uc.On("Rotate", ctx, authDomain.SystemActor, id).Return(nil, rotationDomain.ErrRotationInProgress)
		err := RunRotate(ctx, uc, discardLogger(), IOTuple{Writer: &bytes.Buffer{}}, id.String(), formatText)
		assert.ErrorIs(t, err, rotationDomain.ErrRotationInProgress)
	})
}

type fakeEnvelope struct {
	selfTestErr error
}

func (f *fakeEnvelope) Encrypt(context.Context, []byte) ([]byte, error) { return nil, nil }
func (f *fakeEnvelope) Decrypt(context.Context, []byte) ([]byte, error) { return nil, nil }
func (f *fakeEnvelope) SelfTest(context.Context) error                  { return f.selfTestErr }
func (f *fakeEnvelope) IsActive() bool                                  { return f.selfTestErr == nil }

func TestRunSelfTest(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunSelfTest(ctx, &fakeEnvelope{}, discardLogger(), IOTuple{Writer: &out}, formatText))
		assert.Equal(t, "Encryption self-test: ok\n", out.String())
	})

	t.Run("Error_Failed", func(t *testing.T) {
		var out bytes.Buffer
		err := RunSelfTest(ctx, &fakeEnvelope{selfTestErr: errors.New("token removed")},
			discardLogger(), IOTuple{Writer: &out}, formatJSON)
		assert.ErrorContains(t, err, "token removed")
		assert.Contains(t, out.String(), `"status": "failed"`)
		assert.Contains(t, out.String(), `"active": false`)
	})
}

type fakeCollector struct {
	usage license.Usage
	err   error
}

func (f fakeCollector) Collect(context.Context) (license.Usage, error) { return f.usage, f.err }

func TestRunUsageReport(t *testing.T) {
	ctx := context.Background()
	usage := license.Usage{GeneratedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Rotations: 3, Secrets: 9}

	t.Run("Success_RoundTrip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "usage.csv")
		require.NoError(t, RunUsageReport(ctx, fakeCollector{usage: usage}, discardLogger(),
			IOTuple{Writer: &bytes.Buffer{}}, "lic-1", path))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		var out bytes.Buffer
		require.NoError(t, RunVerifyUsageReport(IOTuple{Writer: &out}, "lic-1", path))
		assert.Contains(t, out.String(), "valid")

		assert.ErrorIs(t, RunVerifyUsageReport(IOTuple{Writer: &out}, "lic-2", path), license.ErrInvalidReport)
	})

	t.Run("Success_Stdout", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, RunUsageReport(ctx, fakeCollector{usage: usage}, discardLogger(),
			IOTuple{Writer: &out}, "lic-1", ""))
		assert.NoError(t, license.VerifyUsageReport("lic-1", out.Bytes()))
	})

	t.Run("Error_NoLicense", func(t *testing.T) {
		err := RunUsageReport(ctx, fakeCollector{}, discardLogger(), IOTuple{Writer: &bytes.Buffer{}}, "", "")
		assert.ErrorContains(t, err, "LICENSE_ID is required")
	})

	t.Run("Error_CollectFails", func(t *testing.T) {
		err := RunUsageReport(ctx, fakeCollector{err: errors.New("db down")}, discardLogger(),
			IOTuple{Writer: &bytes.Buffer{}}, "lic-1", "")
		assert.ErrorContains(t, err, "failed to collect usage")
	})
}
