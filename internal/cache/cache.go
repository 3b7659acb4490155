package cache

import "time"

type entry struct {
	value     any
	updatedAt time.Time
	fresh     bool
}

// Cache holds the last-known-good value of every field for one device.
// Values are only ever overwritten, never removed, so a snapshot is always
// fully populated. Touched only by the owning device's tick; no locking.
type Cache struct {
	deviceID  string
	values    map[string]entry
	available bool
}

func New(deviceID string) *Cache {
	c := &Cache{
		deviceID: deviceID,
		values:   make(map[string]entry),
	}

	// Cold-start defaults: point-in-time readings at zero, diagnostics
	// unknown, offline until the first fetch outcome.
	for _, name := range []string{FieldPower, FieldEnergyToday, FieldEnergyTotal} {
		c.values[name] = entry{value: float64(0)}
	}
	for _, name := range []string{
		FieldWifiSSID, FieldWifiSignal,
		FieldSerialNumber, FieldFirmwareVersion, FieldMACAddress,
	} {
		c.values[name] = entry{value: UnknownText}
	}

	return c
}

// Update writes through every given field, stamping it as fresh for the
// current tick.
func (c *Cache) Update(fields map[string]any, now time.Time) {
	for name, value := range fields {
		c.values[name] = entry{value: value, updatedAt: now, fresh: true}
	}
}

// SeedEnergy restores persisted energy counters on a cold start.
func (c *Cache) SeedEnergy(rec EnergyRecord) {
	c.values[FieldEnergyToday] = entry{value: rec.EnergyToday, updatedAt: rec.UpdatedAt}
	c.values[FieldEnergyTotal] = entry{value: rec.EnergyTotal, updatedAt: rec.UpdatedAt}
}

// Energy returns the current energy counters for write-through persistence.
func (c *Cache) Energy() (today, total float64) {
	t, _ := c.values[FieldEnergyToday].value.(float64)
	tt, _ := c.values[FieldEnergyTotal].value.(float64)

	return t, tt
}

func (c *Cache) SetAvailable(available bool) {
	c.available = available
}

// Snapshot returns the complete current view. Pure read of cached state;
// never blocks on the network.
func (c *Cache) Snapshot(now time.Time) Snapshot {
	fields := make(map[string]CachedValue, len(c.values))
	for name, e := range c.values {
		fields[name] = CachedValue{
			Value:     e.value,
			UpdatedAt: e.updatedAt,
			FromCache: !e.fresh,
		}
	}

	return Snapshot{
		DeviceID:  c.deviceID,
		TakenAt:   now,
		Available: c.available,
		Fields:    fields,
	}
}

// EndTick clears the per-tick freshness marks once the tick's snapshot has
// been published. "Fresh this tick" is annotation, not retained state.
func (c *Cache) EndTick() {
	for name, e := range c.values {
		if e.fresh {
			e.fresh = false
			c.values[name] = e
		}
	}
}
