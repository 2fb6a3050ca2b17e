package factory

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"golang.org/x/crypto/ssh"

	apperrors "github.com/allisson/rotator/internal/errors"
)

// maxErrorBody bounds how much of an error response body is read.
const maxErrorBody = 4096

// providerErrorBody is the structured error document returned by token APIs.
type providerErrorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// classifyResponse converts a non-success HTTP response into a RemoteError. A JSON body
// carrying a message is a provider error; anything else is an unknown failure.
func classifyResponse(provider string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body providerErrorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		if msg := providerMessage(body); msg != "" {
			return apperrors.NewRemoteError(apperrors.ErrBadRequest, provider, msg)
		}
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = resp.Status
	}
	return apperrors.NewRemoteError(
		apperrors.ErrRemoteFailure,
		provider,
		fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, msg),
	)
}

// providerMessage extracts the message from either {"message": "..."} or
// {"error": {"message": "..."}} or {"error": "..."}.
func providerMessage(body providerErrorBody) string {
	if body.Message != "" {
		return body.Message
	}
	if len(body.Error) == 0 {
		return ""
	}

	var nested struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body.Error, &nested); err == nil && nested.Message != "" {
		return nested.Message
	}

	var plain string
	if err := json.Unmarshal(body.Error, &plain); err == nil {
		return plain
	}
	return ""
}

// classifyTransport converts a failure to reach the remote system. The cause stays in
// the chain for logs; callers only see the RemoteError message.
func classifyTransport(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", apperrors.NewRemoteError(
		apperrors.ErrRemoteUnavailable,
		provider,
		"remote system unreachable",
	), err)
}

// classifySQL converts database errors. Server-reported errors carry their message;
// connection failures are transport errors.
func classifySQL(provider string, err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return apperrors.NewRemoteError(apperrors.ErrBadRequest, provider, pqErr.Message)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return apperrors.NewRemoteError(apperrors.ErrBadRequest, provider, myErr.Message)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return classifyTransport(provider, err)
	}

	return apperrors.NewRemoteError(apperrors.ErrRemoteFailure, provider, err.Error())
}

// classifySSH converts command failures. A non-zero exit carries the command's stderr.
func classifySSH(provider string, err error, stderr string) error {
	if err == nil {
		return nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = fmt.Sprintf("command exited with status %d", exitErr.ExitStatus())
		}
		return apperrors.NewRemoteError(apperrors.ErrBadRequest, provider, msg)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
		return classifyTransport(provider, err)
	}

	return apperrors.NewRemoteError(apperrors.ErrRemoteFailure, provider, err.Error())
}
