// Package license builds and verifies signed offline usage reports.
//
// A report is a two row CSV document: a header and one data row. The last column,
// signature, is hex(HMAC-SHA256(licenseID, hex(SHA-256(unsigned)))) where unsigned is
// the same CSV document without the signature column.
package license

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/allisson/rotator/internal/errors"
)

// ErrInvalidReport indicates a malformed report or a signature mismatch.
var ErrInvalidReport = errors.Wrap(errors.ErrInvalidInput, "invalid usage report")

const signatureColumn = "signature"

var usageColumns = []string{
	"license_id",
	"generated_at",
	"projects",
	"connections",
	"rotations",
	"active_rotations",
	"auto_rotations",
	"secrets",
	"approval_policies",
	"clients",
}

// Usage is a point-in-time count of managed resources.
type Usage struct {
	GeneratedAt      time.Time
	Projects         int64
	Connections      int64
	Rotations        int64
	ActiveRotations  int64
	AutoRotations    int64
	Secrets          int64
	ApprovalPolicies int64
	Clients          int64
}

func (u Usage) row(licenseID string) []string {
	return []string{
		licenseID,
		u.GeneratedAt.UTC().Format(time.RFC3339),
		strconv.FormatInt(u.Projects, 10),
		strconv.FormatInt(u.Connections, 10),
		strconv.FormatInt(u.Rotations, 10),
		strconv.FormatInt(u.ActiveRotations, 10),
		strconv.FormatInt(u.AutoRotations, 10),
		strconv.FormatInt(u.Secrets, 10),
		strconv.FormatInt(u.ApprovalPolicies, 10),
		strconv.FormatInt(u.Clients, 10),
	}
}

func encodeCSV(records ...[]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sign computes the signature of the unsigned CSV content.
func sign(licenseID string, unsigned []byte) string {
	digest := sha256.Sum256(unsigned)
	mac := hmac.New(sha256.New, []byte(licenseID))
	mac.Write([]byte(hex.EncodeToString(digest[:])))
	return hex.EncodeToString(mac.Sum(nil))
}

// BuildUsageReport renders usage as a signed CSV report.
func BuildUsageReport(licenseID string, usage Usage) ([]byte, error) {
	if licenseID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "license id is required")
	}

	header := usageColumns
	row := usage.row(licenseID)
	unsigned, err := encodeCSV(header, row)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode usage report")
	}

	signature := sign(licenseID, unsigned)
	signed, err := encodeCSV(
		append(append([]string{}, header...), signatureColumn),
		append(row, signature),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode usage report")
	}
	return signed, nil
}

// VerifyUsageReport checks the report structure and signature against licenseID.
func VerifyUsageReport(licenseID string, report []byte) error {
	records, err := csv.NewReader(bytes.NewReader(report)).ReadAll()
	if err != nil {
		return errors.Wrapf(ErrInvalidReport, "malformed csv: %v", err)
	}
	if len(records) != 2 {
		return errors.Wrapf(ErrInvalidReport, "expected 2 rows, got %d", len(records))
	}

	header, row := records[0], records[1]
	last := len(header) - 1
	if last < 1 || header[last] != signatureColumn || len(row) != len(header) {
		return errors.Wrap(ErrInvalidReport, "missing signature column")
	}

	unsigned, err := encodeCSV(header[:last], row[:last])
	if err != nil {
		return errors.Wrap(err, "failed to encode usage report")
	}

	expected := sign(licenseID, unsigned)
	if !hmac.Equal([]byte(expected), []byte(row[last])) {
		return errors.Wrap(ErrInvalidReport, "signature mismatch")
	}
	return nil
}
