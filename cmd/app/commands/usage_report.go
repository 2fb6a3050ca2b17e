package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/allisson/rotator/internal/license"
)

// UsageCollector counts managed resources. *license.Collector implements it.
type UsageCollector interface {
	Collect(ctx context.Context) (license.Usage, error)
}

// RunUsageReport writes a signed usage report to outputPath, or to io.Writer when
// outputPath is empty.
func RunUsageReport(
	ctx context.Context,
	collector UsageCollector,
	logger *slog.Logger,
	io IOTuple,
	licenseID string,
	outputPath string,
) error {
	if licenseID == "" {
		return fmt.Errorf("LICENSE_ID is required to sign usage reports")
	}

	usage, err := collector.Collect(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect usage: %w", err)
	}

	report, err := license.BuildUsageReport(licenseID, usage)
	if err != nil {
		return err
	}

	if outputPath == "" {
		_, err = io.Writer.Write(report)
		return err
	}
	if err := os.WriteFile(outputPath, report, 0o600); err != nil {
		return fmt.Errorf("failed to write usage report: %w", err)
	}

	logger.Info("usage report written",
		slog.String("path", outputPath),
		slog.Int64("rotations", usage.Rotations),
		slog.Int64("secrets", usage.Secrets),
	)
	return nil
}

// RunVerifyUsageReport checks the signature of the report stored at path.
func RunVerifyUsageReport(io IOTuple, licenseID, path string) error {
	report, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read usage report: %w", err)
	}
	if err := license.VerifyUsageReport(licenseID, report); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(io.Writer, "Usage report signature is valid.")
	return nil
}
