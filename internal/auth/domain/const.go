// Package domain defines authentication and authorization domain models.
// Implements capability-based access control with clients, actors and project permissions.
package domain

// Capability defines the types of operations that can be performed on resources.
// Capabilities are used in policy documents to control client authorization.
type Capability string

const (
	// ReadCapability allows reading resource data.
	ReadCapability Capability = "read"

	// WriteCapability allows creating or updating resource data.
	WriteCapability Capability = "write"

	// DeleteCapability allows removing resource data.
	DeleteCapability Capability = "delete"

	// RotateCapability allows triggering credential rotations.
	RotateCapability Capability = "rotate"
)

// Subject is a resource family inside a project.
type Subject string

const (
	SubjectRotations        Subject = "rotations"
	SubjectConnections      Subject = "connections"
	SubjectSecrets          Subject = "secrets"
	SubjectApprovalPolicies Subject = "approval-policies"
)
