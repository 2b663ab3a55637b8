package actor

import (
	"testing"
	"time"

	"github.com/berfenger/solisflux/internal/core/domain"
	"github.com/berfenger/solisflux/internal/mqtt"
	"github.com/berfenger/solisflux/internal/util"
	"github.com/berfenger/solisflux/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func probeActor(as *actor.ActorSystem) (*actor.PID, chan any) {
	received := make(chan any, 16)
	pid := as.Root.Spawn(actor.PropsFromFunc(func(ctx actor.Context) {
		switch ctx.Message().(type) {
		case actor.SystemMessage, actor.AutoReceiveMessage:
		default:
			received <- ctx.Message()
		}
	}))
	return pid, received
}

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	probe, received := probeActor(as)

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, probe, logger) })
	pid := context.Spawn(props)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)

	es.Publish(domain.CycleOutcome{Period: "night", Message: "OK"})
	es.Publish("not an outcome")

	select {
	case evt := <-received:
		outcome, ok := evt.(domain.CycleOutcome)
		require.True(t, ok)
		assert.Equal(t, "night", outcome.Period)
	case <-time.After(2 * time.Second):
		t.Fatal("outcome not forwarded")
	}

	context.Stop(pid)

	time.Sleep(100 * time.Millisecond)

	as.Shutdown()
}

func TestEvent2MQTTMessage(t *testing.T) {
	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	state := &MQTTActor{
		config: &cfg,
		client: mqtt.CreateMQTTClient(&cfg, mqtt.OptsFromConfig(&cfg), nil, nil),
	}

	outcome := domain.CycleOutcome{
		Period: "night",
		Schedule: domain.ScheduleResult{
			Start:          domain.MustParseHHMM("00:00"),
			End:            domain.MustParseHHMM("02:00"),
			Minutes:        120,
			EnergyAfterKWh: 7,
		},
		LevelKWh: 7,
		Message:  "Current energy 4.5kWh (47% SOC) -> set charge from 00:00 to 02:00 to reach 7.0kWh (74% SOC) target",
	}

	messages := map[string]string{}
	for _, event := range outcome.UpdateEvents() {
		raw := state.event2MQTTMessage(event)
		require.NotNil(t, raw)
		messages[raw.topic] = raw.message
	}

	assert.Equal(outcome.Message, messages["solisflux/sensor/night_status/state"])
	assert.Equal("00:00", messages["solisflux/sensor/night_start/state"])
	assert.Equal("02:00", messages["solisflux/sensor/night_end/state"])
	assert.Equal("7.0", messages["solisflux/sensor/night_energy_after/state"])
	assert.Equal("7.0", messages["solisflux/sensor/night_target/state"])

	bridge := state.event2MQTTMessage(domain.BridgeStateUpdateEvent{Value: false})
	assert.Equal("solisflux/bridge/state", bridge.topic)
	assert.Equal(mqtt.MQTT_PAYLOAD_OFFLINE, bridge.message)
}
