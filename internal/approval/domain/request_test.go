package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Approve(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy, err := NewPolicy(CreatePolicyInput{
		ProjectID:   "billing",
		Environment: "prod",
		SecretPath:  strPtr("/ci"),
		Approvals:   2,
		ApproverIDs: []string{"alice", "bob", "carol"},
	}, now)
	require.NoError(t, err)

	t.Run("Success_ThresholdReached", func(t *testing.T) {
		req := NewRequest(policy, "/ci", "dave", []byte("sealed"), now)
		assert.Equal(t, RequestPending, req.Status)
		assert.Equal(t, "billing", req.ProjectID)

		ready, err := req.Approve(policy, "alice", now)
		require.NoError(t, err)
		assert.False(t, ready)

		ready, err = req.Approve(policy, "alice", now)
		require.NoError(t, err)
		assert.False(t, ready, "second approval by the same approver does not count")

		ready, err = req.Approve(policy, "bob", now.Add(time.Minute))
		require.NoError(t, err)
		assert.True(t, ready)
		assert.Equal(t, []string{"alice", "bob"}, req.ApprovedBy)
	})

	t.Run("Success_RemovedApproverNoLongerCounts", func(t *testing.T) {
		req := NewRequest(policy, "/ci", "dave", nil, now)
		req.ApprovedBy = []string{"mallory"}

		ready, err := req.Approve(policy, "alice", now)
		require.NoError(t, err)
		assert.False(t, ready)
	})

	t.Run("Error_NotApprover", func(t *testing.T) {
		req := NewRequest(policy, "/ci", "dave", nil, now)
		_, err := req.Approve(policy, "eve", now)
		assert.ErrorIs(t, err, ErrNotApprover)
	})

	t.Run("Error_SelfApproval", func(t *testing.T) {
		req := NewRequest(policy, "/ci", "alice", nil, now)
		_, err := req.Approve(policy, "alice", now)
		assert.ErrorIs(t, err, ErrSelfApproval)
	})

	t.Run("Error_AlreadyApplied", func(t *testing.T) {
		req := NewRequest(policy, "/ci", "dave", nil, now)
		req.MarkApplied(now)
		_, err := req.Approve(policy, "alice", now)
		assert.ErrorIs(t, err, ErrRequestNotPending)
	})

	t.Run("Error_OtherPolicy", func(t *testing.T) {
		other, err := NewPolicy(CreatePolicyInput{ProjectID: "billing", Environment: "prod"}, now)
		require.NoError(t, err)
		req := NewRequest(policy, "/ci", "dave", nil, now)
		_, err = req.Approve(other, "alice", now)
		assert.ErrorIs(t, err, ErrPolicyMismatch)
	})
}
