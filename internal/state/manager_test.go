package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homehub/internal/models"
	"homehub/internal/values"
)

type fakeRegistry struct {
	devices map[string]*models.DeviceConfiguration
}

func (r *fakeRegistry) GetDevice(_ context.Context, identifier string) (*models.DeviceConfiguration, error) {
	return r.devices[identifier], nil
}

func (r *fakeRegistry) GetByAlias(_ context.Context, alias string) (*models.DeviceConfiguration, error) {
	for _, d := range r.devices {
		if d.Alias == alias {
			return d, nil
		}
	}
	return nil, nil
}

func (r *fakeRegistry) GetContact(_ context.Context, target models.DeviceTarget) (*models.DeviceContact, error) {
	device := r.devices[target.Identifier]
	if device == nil {
		return nil, nil
	}
	return device.Contact(target.Channel, target.Contact), nil
}

type fakeSink struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *fakeSink) PublishState(context.Context, string, models.DeviceTarget, values.Value, time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testTarget() models.DeviceTarget {
	return models.DeviceTarget{Channel: "zigbee2mqtt", Identifier: "sensor-1", Contact: "temperature"}
}

func testManager(t *testing.T, delta *float64) (*Manager, *fakeSink) {
	t.Helper()
	registry := &fakeRegistry{devices: map[string]*models.DeviceConfiguration{
		"sensor-1": {
			ID:         "id-1",
			Alias:      "Living room sensor",
			Identifier: "sensor-1",
			Endpoints: []models.DeviceEndpoint{{
				Channel: "zigbee2mqtt",
				Contacts: []models.DeviceContact{
					{Name: "temperature", DataType: models.DataTypeDouble, Access: models.AccessRead, NoiseReductionDelta: delta},
					{Name: "label", DataType: models.DataTypeString, Access: models.AccessRead},
				},
			}},
		},
	}}
	sink := &fakeSink{}
	return NewManager(registry, sink, zerolog.Nop()), sink
}

func TestSetStateAndGetState(t *testing.T) {
	m, sink := testManager(t, nil)
	ctx := context.Background()
	target := testTarget()

	require.NoError(t, m.SetState(ctx, target, "20.0"))

	got := m.GetState(target.ContactTarget())
	n, ok := got.AsNumber()
	require.True(t, ok)
	assert.Equal(t, 20.0, n)
	assert.Equal(t, 1, sink.count())
}

func TestSetStateUnchangedValueIsDiscarded(t *testing.T) {
	m, sink := testManager(t, nil)
	ctx := context.Background()
	target := testTarget()

	var notifications int
	m.Subscribe(func(context.Context, models.DeviceTarget) error {
		notifications++
		return nil
	})

	require.NoError(t, m.SetState(ctx, target, 20.0))
	require.NoError(t, m.SetState(ctx, target, 20.0))
	require.NoError(t, m.SetState(ctx, target, "20"))

	history := m.GetStateHistory(target.ContactTarget(), time.Time{}, time.Now().Add(time.Hour))
	assert.Len(t, history, 1)
	assert.Equal(t, 1, notifications)
	assert.Equal(t, 1, sink.count())
}

func TestSetStateNoiseReductionDelta(t *testing.T) {
	delta := 0.5
	m, _ := testManager(t, &delta)
	ctx := context.Background()
	target := testTarget()

	require.NoError(t, m.SetState(ctx, target, 20.0))

	// Within the delta, inclusive: discarded.
	require.NoError(t, m.SetState(ctx, target, 20.3))
	require.NoError(t, m.SetState(ctx, target, 20.5))
	got, _ := m.GetState(target.ContactTarget()).AsNumber()
	assert.Equal(t, 20.0, got)

	// Beyond the delta: accepted.
	require.NoError(t, m.SetState(ctx, target, 21.0))
	got, _ = m.GetState(target.ContactTarget()).AsNumber()
	assert.Equal(t, 21.0, got)

	history := m.GetStateHistory(target.ContactTarget(), time.Time{}, time.Now().Add(time.Hour))
	assert.Len(t, history, 2)
}

func TestSetStateNoiseDeltaDoesNotApplyToFirstValue(t *testing.T) {
	delta := 5.0
	m, _ := testManager(t, &delta)
	ctx := context.Background()
	target := testTarget()

	// First accepted value lands even though |null - 1.0| is undefined.
	require.NoError(t, m.SetState(ctx, target, 1.0))
	got, ok := m.GetState(target.ContactTarget()).AsNumber()
	require.True(t, ok)
	assert.Equal(t, 1.0, got)
}

func TestSetStateUnknownDeviceOrContact(t *testing.T) {
	m, sink := testManager(t, nil)
	ctx := context.Background()

	// Unknown device: silently discarded.
	unknown := models.DeviceTarget{Channel: "zigbee2mqtt", Identifier: "ghost", Contact: "temperature"}
	require.NoError(t, m.SetState(ctx, unknown, 1.0))
	assert.True(t, m.GetState(unknown.ContactTarget()).IsNull())

	// Known device, unknown contact: same.
	badContact := models.DeviceTarget{Channel: "zigbee2mqtt", Identifier: "sensor-1", Contact: "humidity"}
	require.NoError(t, m.SetState(ctx, badContact, 1.0))
	assert.True(t, m.GetState(badContact.ContactTarget()).IsNull())

	assert.Equal(t, 0, sink.count())
}

func TestSetStateInvalidTarget(t *testing.T) {
	m, _ := testManager(t, nil)
	err := m.SetState(context.Background(), models.DeviceTarget{Identifier: "sensor-1"}, 1.0)
	assert.Error(t, err)
}

func TestSetStateSinkFailureDoesNotPropagate(t *testing.T) {
	m, sink := testManager(t, nil)
	sink.err = errors.New("queue down")

	target := testTarget()
	require.NoError(t, m.SetState(context.Background(), target, 20.0))

	// Local cache still updated.
	got, ok := m.GetState(target.ContactTarget()).AsNumber()
	require.True(t, ok)
	assert.Equal(t, 20.0, got)
}

func TestGetStateUnknownTargetIsNull(t *testing.T) {
	m, _ := testManager(t, nil)
	got := m.GetState(models.ContactTarget{Identifier: "never-seen", Contact: "x"})
	assert.True(t, got.IsNull())
}

func TestGetStateHistoryRange(t *testing.T) {
	m, _ := testManager(t, nil)
	ctx := context.Background()
	target := testTarget()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	m.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	require.NoError(t, m.SetState(ctx, target, 20.0)) // 12:01
	require.NoError(t, m.SetState(ctx, target, 21.0)) // 12:02
	require.NoError(t, m.SetState(ctx, target, 22.0)) // 12:03

	// No history at all for an unseen target: nil.
	assert.Nil(t, m.GetStateHistory(models.ContactTarget{Identifier: "ghost", Contact: "x"}, base, base.Add(time.Hour)))

	// Inclusive bounds.
	history := m.GetStateHistory(target.ContactTarget(), base.Add(time.Minute), base.Add(2*time.Minute))
	require.Len(t, history, 2)
	n, _ := history[0].Value.AsNumber()
	assert.Equal(t, 20.0, n)
	n, _ = history[1].Value.AsNumber()
	assert.Equal(t, 21.0, n)

	// An empty window on a known target is an empty slice, not nil.
	empty := m.GetStateHistory(target.ContactTarget(), base.Add(time.Hour), base.Add(2*time.Hour))
	require.NotNil(t, empty)
	assert.Len(t, empty, 0)
}

func TestSetStateStringContactKeepsRawString(t *testing.T) {
	m, _ := testManager(t, nil)
	target := models.DeviceTarget{Channel: "zigbee2mqtt", Identifier: "sensor-1", Contact: "label"}

	require.NoError(t, m.SetState(context.Background(), target, "ON"))
	s, ok := m.GetState(target.ContactTarget()).AsString()
	require.True(t, ok)
	assert.Equal(t, "ON", s)
}

func TestSetStateNotifiesSubscribers(t *testing.T) {
	m, _ := testManager(t, nil)
	target := testTarget()

	var got []models.DeviceTarget
	m.Subscribe(func(_ context.Context, changed models.DeviceTarget) error {
		got = append(got, changed)
		return nil
	})

	require.NoError(t, m.SetState(context.Background(), target, 20.0))
	require.Len(t, got, 1)
	assert.Equal(t, target, got[0])

	// Subscriber can read the already-updated value.
	m.Subscribe(func(_ context.Context, changed models.DeviceTarget) error {
		n, ok := m.GetState(changed.ContactTarget()).AsNumber()
		assert.True(t, ok)
		assert.Equal(t, 25.0, n)
		return nil
	})
	require.NoError(t, m.SetState(context.Background(), target, 25.0))
}
