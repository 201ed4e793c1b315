package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"homehub/internal/models"
)

// DeviceRegistry reads and writes device configurations. Devices are
// cached in memory after the first load; protocol adapters register
// discovered devices through Upsert.
type DeviceRegistry struct {
	db *DB

	mu      sync.RWMutex
	devices map[string]*models.DeviceConfiguration
}

// NewDeviceRegistry creates a registry over the given database.
func NewDeviceRegistry(db *DB) *DeviceRegistry {
	return &DeviceRegistry{db: db}
}

// GetDevice returns the device with the given identifier, or nil.
func (r *DeviceRegistry) GetDevice(ctx context.Context, identifier string) (*models.DeviceConfiguration, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices[identifier], nil
}

// GetByAlias returns the device with the given alias, or nil.
func (r *DeviceRegistry) GetByAlias(ctx context.Context, alias string) (*models.DeviceConfiguration, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, device := range r.devices {
		if device.Alias == alias {
			return device, nil
		}
	}
	return nil, nil
}

// GetContact returns the contact metadata for the target, or nil when
// the device or contact is unknown.
func (r *DeviceRegistry) GetContact(ctx context.Context, target models.DeviceTarget) (*models.DeviceContact, error) {
	device, err := r.GetDevice(ctx, target.Identifier)
	if err != nil || device == nil {
		return nil, err
	}
	return device.Contact(target.Channel, target.Contact), nil
}

// GetAll returns all registered devices.
func (r *DeviceRegistry) GetAll(ctx context.Context) ([]models.DeviceConfiguration, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.DeviceConfiguration, 0, len(r.devices))
	for _, device := range r.devices {
		out = append(out, *device)
	}
	return out, nil
}

// Upsert stores a discovered device and refreshes the cache entry.
// Existing devices keep their id.
func (r *DeviceRegistry) Upsert(ctx context.Context, device models.DeviceConfiguration) error {
	if device.Identifier == "" {
		return fmt.Errorf("db: device identifier is required")
	}
	if err := r.load(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	if existing := r.devices[device.Identifier]; existing != nil {
		device.ID = existing.ID
	} else if device.ID == "" {
		device.ID = uuid.NewString()
	}
	r.mu.Unlock()

	endpoints, err := json.Marshal(device.Endpoints)
	if err != nil {
		return fmt.Errorf("db: marshal endpoints: %w", err)
	}
	_, err = r.db.pool.Exec(ctx,
		`INSERT INTO devices (id, alias, identifier, manufacturer, model, endpoints)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (identifier) DO UPDATE
		 SET alias = $2, manufacturer = $4, model = $5, endpoints = $6`,
		device.ID, device.Alias, device.Identifier, device.Manufacturer, device.Model, endpoints)
	if err != nil {
		return fmt.Errorf("db: upsert device: %w", err)
	}

	r.mu.Lock()
	r.devices[device.Identifier] = &device
	r.mu.Unlock()
	return nil
}

func (r *DeviceRegistry) load(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.devices != nil
	r.mu.RUnlock()
	if loaded {
		return nil
	}

	rows, err := r.db.pool.Query(ctx,
		"SELECT id, alias, identifier, manufacturer, model, endpoints FROM devices")
	if err != nil {
		return fmt.Errorf("db: load devices: %w", err)
	}
	defer rows.Close()

	devices := make(map[string]*models.DeviceConfiguration)
	for rows.Next() {
		var (
			device    models.DeviceConfiguration
			endpoints []byte
		)
		if err := rows.Scan(&device.ID, &device.Alias, &device.Identifier,
			&device.Manufacturer, &device.Model, &endpoints); err != nil {
			return fmt.Errorf("db: scan device: %w", err)
		}
		if len(endpoints) > 0 {
			if err := json.Unmarshal(endpoints, &device.Endpoints); err != nil {
				return fmt.Errorf("db: device %s endpoints: %w", device.Identifier, err)
			}
		}
		devices[device.Identifier] = &device
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("db: load devices: %w", err)
	}

	r.mu.Lock()
	if r.devices == nil {
		r.devices = devices
	}
	r.mu.Unlock()
	return nil
}
