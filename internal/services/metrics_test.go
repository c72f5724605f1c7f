package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jrong1271/scrum-planning-poker/internal/services"
)

func TestMetricsSnapshot(t *testing.T) {
	t.Run("counters show up in the snapshot", func(t *testing.T) {
		m := services.NewMetrics()

		m.IncrementConnections()
		m.IncrementConnections()
		m.DecrementConnections()
		m.IncrementRooms()
		m.IncrementMessagesReceived()
		m.IncrementMessagesSent()
		m.IncrementRateLimitViolations()
		m.AddPrunedParticipants(3)

		snap := m.Snapshot()
		assert.Equal(t, int64(1), snap.ActiveConnections)
		assert.Equal(t, int64(2), snap.TotalConnections)
		assert.Equal(t, int64(1), snap.ActiveRooms)
		assert.Equal(t, int64(1), snap.MessagesReceived)
		assert.Equal(t, int64(1), snap.MessagesSent)
		assert.Equal(t, int64(1), snap.RateLimitViolations)
		assert.Equal(t, int64(3), snap.PrunedParticipants)
		assert.NotEqual(t, "never", snap.LastMessageTime)
	})

	t.Run("fresh tracker is healthy", func(t *testing.T) {
		m := services.NewMetrics()

		snap := m.Snapshot()
		assert.Equal(t, "healthy", snap.HealthStatus)
		assert.Equal(t, "never", snap.LastMessageTime)
	})
}
