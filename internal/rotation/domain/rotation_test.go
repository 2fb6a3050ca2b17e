package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotation_MarkRotated(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Success_SchedulesNext", func(t *testing.T) {
		r := &Rotation{
			Status:           StatusRotating,
			PendingIssue:     "x",
			AutoRotate:       true,
			RotationInterval: 24 * time.Hour,
		}
		r.MarkRotated(now)

		assert.Equal(t, StatusActive, r.Status)
		assert.Empty(t, r.PendingIssue)
		require.NotNil(t, r.NextRotationAt)
		assert.Equal(t, now.Add(24*time.Hour), *r.NextRotationAt)
		assert.Equal(t, now, *r.LastRotatedAt)
	})

	t.Run("Success_ManualHasNoNext", func(t *testing.T) {
		r := &Rotation{RotationInterval: time.Hour}
		r.MarkRotated(now)
		assert.Nil(t, r.NextRotationAt)
	})
}

func TestRotation_DisplayName(t *testing.T) {
	r := &Rotation{Name: "ci-token"}
	now := time.Date(2026, 3, 1, 12, 30, 5, 0, time.UTC)
	assert.Equal(t, "ci-token-20260301T123005Z", r.DisplayName(now))
}
