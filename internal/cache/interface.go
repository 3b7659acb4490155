package cache

import (
	"context"
	"time"
)

// Field names as they appear in snapshots and the durable store.
const (
	FieldPower           = "power"
	FieldEnergyToday     = "energy_today"
	FieldEnergyTotal     = "energy_total"
	FieldWifiSSID        = "wifi_ssid"
	FieldWifiSignal      = "wifi_signal"
	FieldSerialNumber    = "serial_number"
	FieldFirmwareVersion = "firmware_version"
	FieldMACAddress      = "mac_address"
)

// UnknownText is the reported value for diagnostic fields that have never
// been fetched.
const UnknownText = "unknown"

// CachedValue is one field's reported value. FromCache is false only for
// fields written during the tick the snapshot was taken on.
type CachedValue struct {
	Value     any
	UpdatedAt time.Time
	FromCache bool
}

// Snapshot is the published view of a device: every field always present,
// regardless of whether the device has ever responded.
type Snapshot struct {
	DeviceID  string
	TakenAt   time.Time
	Available bool
	Fields    map[string]CachedValue
}

// Float returns a numeric field's value, 0 if it holds no number.
func (s Snapshot) Float(name string) float64 {
	if v, ok := s.Fields[name].Value.(float64); ok {
		return v
	}

	return 0
}

// Text returns a diagnostic field's value, UnknownText if it holds no text.
func (s Snapshot) Text(name string) string {
	if v, ok := s.Fields[name].Value.(string); ok {
		return v
	}

	return UnknownText
}

// EnergyRecord is the persisted subset of a device's cache.
type EnergyRecord struct {
	EnergyToday float64
	EnergyTotal float64
	UpdatedAt   time.Time
}

// Repository is the durable store for the energy subset of the cache.
type Repository interface {
	SaveEnergy(ctx context.Context, deviceID string, rec EnergyRecord) error
	LoadEnergy(ctx context.Context, deviceID string) (EnergyRecord, bool, error)
	Close() error
}
