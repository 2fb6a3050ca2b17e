package commands

import (
	"context"
	"fmt"
	"log/slog"

	cryptoService "github.com/allisson/rotator/internal/crypto/service"
)

// RunSelfTest round-trips random data through the HSM-backed envelope service.
func RunSelfTest(
	ctx context.Context,
	envelope cryptoService.EnvelopeService,
	logger *slog.Logger,
	io IOTuple,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	testErr := envelope.SelfTest(ctx)
	status := "ok"
	if testErr != nil {
		status = "failed"
		logger.Error("encryption self-test failed", slog.Any("error", testErr))
	}

	if format == formatJSON {
		out := map[string]any{"status": status, "active": envelope.IsActive()}
		if testErr != nil {
			out["error"] = testErr.Error()
		}
		if err := writeJSON(io.Writer, out); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(io.Writer, "Encryption self-test: %s\n", status)
	}

	if testErr != nil {
		return fmt.Errorf("encryption self-test failed: %w", testErr)
	}
	return nil
}
