package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventType_String(t *testing.T) {
	tests := []struct {
		name     string
		et       EventType
		expected string
	}{
		{"created", EventTypeCreated, "created"},
		{"updated", EventTypeUpdated, "updated"},
		{"deleted", EventTypeDeleted, "deleted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.et))
		})
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		"id":           1,
		"month":        "2024-03-01",
		"limit_amount": 50000,
	}

	before := time.Now()
	evt := NewEvent(EventTypeCreated, EntityTypeBudget, payload)
	after := time.Now()

	assert.Equal(t, "budget.created", evt.Type)
	assert.Equal(t, EntityTypeBudget, evt.Entity)
	assert.Equal(t, payload, evt.Payload)
	assert.True(t, !evt.Timestamp.Before(before) && !evt.Timestamp.After(after))
}

func TestEvent_JSON_Serialization(t *testing.T) {
	fixedTime := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	evt := Event{
		Type:   "budget.updated",
		Entity: EntityTypeBudget,
		Payload: map[string]interface{}{
			"id":           float64(1),
			"month":        "2024-03-01",
			"limit_amount": float64(50000),
		},
		Timestamp: fixedTime,
	}

	data, err := json.Marshal(evt)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, evt.Type, decoded.Type)
	assert.Equal(t, evt.Entity, decoded.Entity)
	assert.Equal(t, fixedTime.UTC(), decoded.Timestamp.UTC())

	decodedPayload, ok := decoded.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), decodedPayload["id"])
	assert.Equal(t, "2024-03-01", decodedPayload["month"])
	assert.Equal(t, float64(50000), decodedPayload["limit_amount"])
}

func TestBudgetEvent_Helpers(t *testing.T) {
	payload := map[string]interface{}{"id": float64(7)}

	tests := []struct {
		name     string
		evt      Event
		expected string
	}{
		{"created", BudgetCreated(payload), "budget.created"},
		{"updated", BudgetUpdated(payload), "budget.updated"},
		{"deleted", BudgetDeleted(payload), "budget.deleted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.evt.Type)
			assert.Equal(t, EntityTypeBudget, tt.evt.Entity)

			data, err := tt.evt.ToJSON()
			require.NoError(t, err)

			var decoded map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.expected, decoded["type"])
			assert.Equal(t, "budget", decoded["entity"])
		})
	}
}
