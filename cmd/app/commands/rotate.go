package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	rotationUseCase "github.com/allisson/rotator/internal/rotation/usecase"
)

// RunRotate rotates one definition immediately as the system actor.
func RunRotate(
	ctx context.Context,
	rotations rotationUseCase.RotationUseCase,
	logger *slog.Logger,
	io IOTuple,
	rotationIDStr string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	rotationID, err := uuid.Parse(rotationIDStr)
	if err != nil {
		return fmt.Errorf("invalid rotation ID format: %w", err)
	}

	logger.Info("rotating credential", slog.String("rotation_id", rotationID.String()))

	result, err := rotations.Rotate(ctx, authDomain.SystemActor, rotationID)
	if err != nil {
		return fmt.Errorf("failed to rotate: %w", err)
	}

	rotation := result.Rotation
	revokeError := ""
	if result.RevokeError != nil {
		revokeError = result.RevokeError.Error()
		logger.Warn("previous credential was not revoked", slog.Any("error", result.RevokeError))
	}

	if format == formatJSON {
		out := map[string]any{
			"rotation_id": rotation.ID.String(),
			"status":      string(rotation.Status),
		}
		if rotation.LastRotatedAt != nil {
			out["last_rotated_at"] = rotation.LastRotatedAt.UTC().Format(time.RFC3339)
		}
		if rotation.NextRotationAt != nil {
			out["next_rotation_at"] = rotation.NextRotationAt.UTC().Format(time.RFC3339)
		}
		if revokeError != "" {
			out["revoke_error"] = revokeError
		}
		return writeJSON(io.Writer, out)
	}

	_, _ = fmt.Fprintln(io.Writer, "Rotation completed.")
	_, _ = fmt.Fprintf(io.Writer, "Rotation ID: %s\n", rotation.ID)
	_, _ = fmt.Fprintf(io.Writer, "Status: %s\n", rotation.Status)
	if rotation.NextRotationAt != nil {
		_, _ = fmt.Fprintf(io.Writer, "Next rotation: %s\n", rotation.NextRotationAt.UTC().Format(time.RFC3339))
	}
	if revokeError != "" {
		_, _ = fmt.Fprintf(io.Writer, "WARNING: previous credential is still active: %s\n", revokeError)
	}
	return nil
}
