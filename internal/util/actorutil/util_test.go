package actorutil

import (
	"testing"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandToRequest(t *testing.T) {
	req, err := CommandToRequest(mqtt.ParsedMQTTCommand{DeviceId: "night_run", Command: mqtt.COMMAND_BUTTON, Payload: "PRESS"})
	require.NoError(t, err)
	assert.Equal(t, &domain.ForPeriod{
		Name:    "night",
		Request: domain.RunCycleRequest{Save: true, Trigger: "mqtt"},
	}, req)

	req, err = CommandToRequest(mqtt.ParsedMQTTCommand{DeviceId: "late_evening_minutes", Command: mqtt.COMMAND_NUMBER, Payload: "45.0"})
	require.NoError(t, err)
	assert.Equal(t, "late_evening", req.Name)
	assert.Equal(t, domain.SetMinutesRequest{Minutes: 45}, req.Request)
}

func TestCommandToRequestErrors(t *testing.T) {
	for _, cmd := range []mqtt.ParsedMQTTCommand{
		{DeviceId: "night_status", Command: mqtt.COMMAND_BUTTON},
		{DeviceId: "night_minutes", Command: mqtt.COMMAND_NUMBER, Payload: "abc"},
		{DeviceId: "night_minutes", Command: mqtt.COMMAND_NUMBER, Payload: "-3"},
		{DeviceId: "night_run", Command: mqtt.COMMAND_NUMBER, Payload: "3"},
	} {
		_, err := CommandToRequest(cmd)
		assert.Error(t, err, cmd.DeviceId)
	}
}

type namedState string

func (s namedState) Name() string           { return string(s) }
func (s namedState) Receive(_ actor.Context) {}

func TestActorWithStatesName(t *testing.T) {
	s := &ActorWithStates{Behavior: actor.NewBehavior()}
	assert.Equal(t, "", s.StateName())

	s.Become(namedState("idle"))
	assert.Equal(t, "idle", s.StateName())

	s.BecomeStacked(namedState("telemetry"))
	assert.Equal(t, "telemetry", s.StateName())

	s.UnbecomeStacked()
	assert.Equal(t, "idle", s.StateName())

	s.Become(namedState("retrying"))
	assert.Equal(t, "retrying", s.StateName())
}
