package dto

import (
	"encoding/json"
	"time"

	rotationDomain "github.com/allisson/rotator/internal/rotation/domain"
)

// ConnectionResponse represents a connection in API responses. Credentials are never returned.
type ConnectionResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MapConnectionToResponse converts a domain connection to an API response.
func MapConnectionToResponse(conn *rotationDomain.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:        conn.ID.String(),
		ProjectID: conn.ProjectID,
		Kind:      string(conn.Kind),
		Name:      conn.Name,
		CreatedAt: conn.CreatedAt,
		UpdatedAt: conn.UpdatedAt,
	}
}

// RotationResponse represents a rotation definition in API responses. The encrypted
// credential set stays server side.
type RotationResponse struct {
	ID               string          `json:"id"`
	ProjectID        string          `json:"project_id"`
	Environment      string          `json:"environment"`
	SecretPath       string          `json:"secret_path"`
	Name             string          `json:"name"`
	Kind             string          `json:"kind"`
	ConnectionID     string          `json:"connection_id"`
	Parameters       json.RawMessage `json:"parameters"`
	SecretsMapping   json.RawMessage `json:"secrets_mapping"`
	Status           string          `json:"status"`
	AutoRotate       bool            `json:"auto_rotate"`
	RotationInterval string          `json:"rotation_interval,omitempty"`
	LastRotatedAt    *time.Time      `json:"last_rotated_at"`
	NextRotationAt   *time.Time      `json:"next_rotation_at"`
	LastError        string          `json:"last_error,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// MapRotationToResponse converts a domain rotation to an API response.
func MapRotationToResponse(r *rotationDomain.Rotation) RotationResponse {
	resp := RotationResponse{
		ID:             r.ID.String(),
		ProjectID:      r.ProjectID,
		Environment:    r.Environment,
		SecretPath:     r.SecretPath,
		Name:           r.Name,
		Kind:           string(r.Kind),
		ConnectionID:   r.ConnectionID.String(),
		Parameters:     r.Parameters,
		SecretsMapping: r.SecretsMapping,
		Status:         string(r.Status),
		AutoRotate:     r.AutoRotate,
		LastRotatedAt:  r.LastRotatedAt,
		NextRotationAt: r.NextRotationAt,
		LastError:      r.LastError,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.RotationInterval > 0 {
		resp.RotationInterval = r.RotationInterval.String()
	}
	return resp
}

// ListRotationsResponse wraps a page of rotations.
type ListRotationsResponse struct {
	Data []RotationResponse `json:"data"`
}

// MapRotationsToListResponse converts a page of rotations to an API response.
func MapRotationsToListResponse(rotations []*rotationDomain.Rotation) ListRotationsResponse {
	data := make([]RotationResponse, 0, len(rotations))
	for _, r := range rotations {
		data = append(data, MapRotationToResponse(r))
	}
	return ListRotationsResponse{Data: data}
}

// RotateResponse is returned by a manual rotation. RevokeError reports a failed
// revocation of the previous credential; the rotation itself succeeded and the
// revocation is retried on the next rotation.
type RotateResponse struct {
	Rotation    RotationResponse `json:"rotation"`
	RevokeError string           `json:"revoke_error,omitempty"`
}

// MapRotationResultToResponse converts a rotation result to an API response.
func MapRotationResultToResponse(result *rotationDomain.RotationResult) RotateResponse {
	resp := RotateResponse{Rotation: MapRotationToResponse(result.Rotation)}
	if result.RevokeError != nil {
		resp.RevokeError = result.RevokeError.Error()
	}
	return resp
}
