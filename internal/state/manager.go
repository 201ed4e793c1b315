package state

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"homehub/internal/models"
	"homehub/internal/pubsub"
	"homehub/internal/values"
)

// Registry resolves device and contact metadata. Backed by the device
// store; the manager only reads it.
type Registry interface {
	GetDevice(ctx context.Context, identifier string) (*models.DeviceConfiguration, error)
	GetByAlias(ctx context.Context, alias string) (*models.DeviceConfiguration, error)
	GetContact(ctx context.Context, target models.DeviceTarget) (*models.DeviceContact, error)
}

// Sink receives accepted state changes. Best effort: failures are
// logged and never affect the local cache.
type Sink interface {
	PublishState(ctx context.Context, deviceID string, target models.DeviceTarget, value values.Value, timestamp time.Time) error
}

// HistoricalValue is one accepted state change of a target.
type HistoricalValue struct {
	Value     values.Value `json:"value"`
	Timestamp time.Time    `json:"timestamp"`
}

// Manager owns the in-memory cache of current device values and their
// history. Writes for different targets run in parallel; writes for the
// same target are serialized.
type Manager struct {
	registry Registry
	sink     Sink
	hub      *pubsub.Hub[models.DeviceTarget]
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	entries map[models.ContactTarget]*entry
}

type entry struct {
	mu      sync.RWMutex
	set     bool
	value   values.Value
	history []HistoricalValue
}

// NewManager creates a state manager publishing change notifications
// through its own hub and forwarding accepted changes to sink.
func NewManager(registry Registry, sink Sink, logger zerolog.Logger) *Manager {
	return &Manager{
		registry: registry,
		sink:     sink,
		hub:      pubsub.NewHub[models.DeviceTarget](logger),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		entries:  make(map[models.ContactTarget]*entry),
	}
}

// Subscribe registers a handler for state change notifications.
func (m *Manager) Subscribe(handler pubsub.Handler[models.DeviceTarget]) *pubsub.Subscription {
	return m.hub.Subscribe(handler)
}

// SetState coerces the raw value and applies it to the target's cache
// entry. Unchanged values, values for unregistered contacts and changes
// within the contact's noise reduction delta are discarded silently.
// Accepted changes append history, notify subscribers and are forwarded
// to the sink.
func (m *Manager) SetState(ctx context.Context, target models.DeviceTarget, raw any) error {
	if !target.Valid() {
		return fmt.Errorf("state: invalid target %q", target)
	}

	value := values.Parse(raw)

	// Contact metadata is read before taking the per-target lock so a
	// cold registry never stalls writers of the same target.
	device, err := m.registry.GetDevice(ctx, target.Identifier)
	if err != nil || device == nil {
		m.logger.Debug().Stringer("target", target).Err(err).
			Msg("state ignored, device not registered")
		return nil
	}
	contact, err := m.registry.GetContact(ctx, target)
	if err != nil || contact == nil {
		m.logger.Debug().Stringer("target", target).Err(err).
			Msg("state ignored, unknown contact")
		return nil
	}

	e := m.entry(target.ContactTarget())

	e.mu.Lock()
	current := e.value
	if values.Equal(current, value) {
		e.mu.Unlock()
		m.logger.Debug().Stringer("target", target).Stringer("value", value).
			Msg("state ignored, unchanged")
		return nil
	}
	if e.set && withinNoiseDelta(contact, current, value) {
		e.mu.Unlock()
		m.logger.Debug().Stringer("target", target).Stringer("value", value).
			Msg("state ignored, within noise delta")
		return nil
	}

	timestamp := m.now()
	e.set = true
	e.value = value
	e.history = append(e.history, HistoricalValue{Value: value, Timestamp: timestamp})
	e.mu.Unlock()

	m.logger.Debug().Stringer("target", target).Stringer("value", value).
		Msg("state updated")

	// Notify local subscribers; returns after all handlers finished.
	m.hub.Publish(ctx, []models.DeviceTarget{target})

	if err := m.sink.PublishState(ctx, device.ID, target, value, timestamp); err != nil {
		m.logger.Warn().Err(err).Stringer("target", target).
			Msg("failed to forward state to sink")
	}
	return nil
}

// GetState returns the cached value for the target, or null when no
// state was ever accepted for it.
func (m *Manager) GetState(target models.ContactTarget) values.Value {
	m.mu.RLock()
	e := m.entries[target]
	m.mu.RUnlock()
	if e == nil {
		return values.Null
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value
}

// GetStateHistory returns the target's accepted changes with timestamps
// in [start, end], in append order, or nil when the target has no
// history at all.
func (m *Manager) GetStateHistory(target models.ContactTarget, start, end time.Time) []HistoricalValue {
	m.mu.RLock()
	e := m.entries[target]
	m.mu.RUnlock()
	if e == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.history) == 0 {
		return nil
	}
	out := make([]HistoricalValue, 0, len(e.history))
	for _, hv := range e.history {
		if hv.Timestamp.Before(start) || hv.Timestamp.After(end) {
			continue
		}
		out = append(out, hv)
	}
	return out
}

func (m *Manager) entry(target models.ContactTarget) *entry {
	m.mu.RLock()
	e := m.entries[target]
	m.mu.RUnlock()
	if e != nil {
		return e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e = m.entries[target]; e == nil {
		e = &entry{}
		m.entries[target] = e
	}
	return e
}

// withinNoiseDelta reports whether the change from current to next is
// below the contact's noise reduction threshold. Only meaningful for
// numeric contacts with a configured delta when both values are
// numeric.
func withinNoiseDelta(contact *models.DeviceContact, current, next values.Value) bool {
	if !contact.IsNumeric() || contact.NoiseReductionDelta == nil {
		return false
	}
	cur, ok := current.Numeric()
	if !ok {
		return false
	}
	nxt, ok := next.Numeric()
	if !ok {
		return false
	}
	return math.Abs(cur-nxt) <= *contact.NoiseReductionDelta
}
