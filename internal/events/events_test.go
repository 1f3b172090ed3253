package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONDeliversToSubscribers(t *testing.T) {
	bus := NewEventBus()

	var got *Event
	bus.Subscribe(EventExportFailed, func(event *Event) error {
		got = event
		return nil
	})

	payload := ExportEventPayload{Date: "2026-08-31", Success: false, Failed: []string{"employees"}}
	require.NoError(t, bus.PublishJSON(EventExportFailed, payload))

	require.NotNil(t, got)
	assert.Equal(t, EventExportFailed, got.Type)
	assert.False(t, got.CreatedAt.IsZero())

	var decoded ExportEventPayload
	require.NoError(t, json.Unmarshal(got.Payload, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestPublishJSONIgnoresOtherEventTypes(t *testing.T) {
	bus := NewEventBus()

	called := false
	bus.Subscribe(EventExportCompleted, func(event *Event) error {
		called = true
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventExportFailed, ExportEventPayload{}))
	assert.False(t, called)
}

func TestPublishJSONOnNilBus(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventExportCompleted, ExportEventPayload{}))
}
