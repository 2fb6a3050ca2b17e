package domain

import (
	"fmt"

	"github.com/allisson/rotator/internal/errors"
)

// Permission answers capability questions for one actor inside one project.
type Permission struct {
	projectID string
	system    bool
	client    *Client
}

// NewClientPermission scopes client's policies to projectID.
func NewClientPermission(client *Client, projectID string) Permission {
	return Permission{projectID: projectID, client: client}
}

// SystemPermission allows everything.
func SystemPermission(projectID string) Permission {
	return Permission{projectID: projectID, system: true}
}

// Path returns the policy path checked for subject: /projects/{id}/{subject}.
func (p Permission) Path(subject Subject) string {
	return fmt.Sprintf("/projects/%s/%s", p.projectID, subject)
}

// Can reports whether the actor holds capability on subject.
func (p Permission) Can(capability Capability, subject Subject) bool {
	if p.system {
		return true
	}
	if p.client == nil || !p.client.IsActive {
		return false
	}
	return p.client.IsAllowed(p.Path(subject), capability)
}

// Require returns ErrForbidden unless the actor holds capability on subject.
func (p Permission) Require(capability Capability, subject Subject) error {
	if p.Can(capability, subject) {
		return nil
	}
	return errors.Wrapf(errors.ErrForbidden, "%s %s not permitted", capability, subject)
}
