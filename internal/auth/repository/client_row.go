package repository

import (
	"database/sql"
	"encoding/json"
	"errors"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	apperrors "github.com/allisson/rotator/internal/errors"
)

const clientSelectColumns = "id, secret, name, is_active, policies, created_at"

// scanClient reads one clients row. id is the scan target for the id column, which
// differs per driver; decodeID moves it into client.ID.
func scanClient(row *sql.Row, id any, decodeID func(*authDomain.Client) error) (*authDomain.Client, error) {
	var client authDomain.Client
	var policies []byte
	if err := row.Scan(id, &client.Secret, &client.Name, &client.IsActive, &policies, &client.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authDomain.ErrClientNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get client")
	}
	if err := decodeID(&client); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal client id")
	}
	if err := json.Unmarshal(policies, &client.Policies); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal client policies")
	}
	return &client, nil
}

func marshalPolicies(client *authDomain.Client) ([]byte, error) {
	policies, err := json.Marshal(client.Policies)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal client policies")
	}
	return policies, nil
}

func checkUpdated(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to update client")
	}
	return rows > 0, nil
}
