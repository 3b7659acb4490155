package poll

import (
	"context"
	"time"

	"codeberg.org/halvor/sunmon/internal/cache"
	"codeberg.org/halvor/sunmon/internal/errors"
	"codeberg.org/halvor/sunmon/internal/inverter"
	"codeberg.org/halvor/sunmon/internal/logger"
)

// Publisher receives the authoritative snapshot once per tick, whether or
// not anything changed.
type Publisher interface {
	Publish(ctx context.Context, snap cache.Snapshot) error
}

type Config struct {
	DeviceID       string
	UpdateInterval time.Duration
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.DeviceID == "" {
		return errFactory.New(errors.ErrInvalidHost)
	}

	if c.UpdateInterval < 10*time.Second || c.UpdateInterval > 3600*time.Second {
		return errFactory.WithData(errors.ErrInvalidInterval, c.UpdateInterval.String())
	}

	return nil
}

// Coordinator owns the periodic fetch cycle for one device: tiered
// freshness, failure tracking, the value cache, and write-through energy
// persistence. All state is touched only by the owning device's tick, so
// no locking is needed; the next tick is scheduled only after the previous
// tick's publish completes.
type Coordinator struct {
	deviceID  string
	fetcher   inverter.Fetcher
	schedule  *Schedule
	tracker   *Tracker
	cache     *cache.Cache
	store     cache.Repository
	publisher Publisher
}

func New(cfg Config, fetcher inverter.Fetcher, store cache.Repository, publisher Publisher) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		deviceID:  cfg.DeviceID,
		fetcher:   fetcher,
		schedule:  NewSchedule(cfg.UpdateInterval),
		tracker:   NewTracker(),
		cache:     cache.New(cfg.DeviceID),
		store:     store,
		publisher: publisher,
	}

	c.restoreEnergy()

	return c, nil
}

// restoreEnergy seeds the cache from the durable store so cumulative
// counters survive a restart even if the first post-restart fetch fails.
func (c *Coordinator) restoreEnergy() {
	rec, ok, err := c.store.LoadEnergy(context.Background(), c.deviceID)
	if err != nil {
		logger.Warn().
			Str("device", c.deviceID).
			Err(err).
			Msg("Failed to restore persisted energy state")
		return
	}
	if !ok {
		return
	}

	c.cache.SeedEnergy(rec)
	logger.Info().
		Str("device", c.deviceID).
		Float64("energy_today", rec.EnergyToday).
		Float64("energy_total", rec.EnergyTotal).
		Time("updated_at", rec.UpdatedAt).
		Msg("Restored persisted energy state")
}

// Run drives the tick loop until ctx is cancelled. A tick never returns an
// error to the loop: fetch failures are absorbed into the tracker and the
// snapshot is published regardless.
func (c *Coordinator) Run(ctx context.Context) error {
	interval := c.schedule.TickInterval()
	if interval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, interval.String())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().
		Str("device", c.deviceID).
		Dur("interval", interval).
		Msg("Polling started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str("device", c.deviceID).Msg("Polling stopped")
			return nil
		case <-ticker.C:
			c.RunTick(ctx, time.Now())
		}
	}
}

// Snapshot is the read path for the device's current reported state.
func (c *Coordinator) Snapshot() cache.Snapshot {
	return c.cache.Snapshot(time.Now())
}

// RunTick executes one cycle: decide due categories, fetch once if any are
// due, merge results, update the tracker, publish.
func (c *Coordinator) RunTick(ctx context.Context, now time.Time) {
	due := c.schedule.Due(now)

	// All categories come off one status page, so a single fetch serves
	// every due category on this tick.
	if len(due) > 0 {
		fields, err := c.fetchFields(ctx)
		if err != nil {
			c.tracker.Observe(false)
			c.logFetchFailure(err)
		} else {
			c.tracker.Observe(true)
			c.merge(ctx, due, fields, now)
		}
	}

	c.cache.SetAvailable(c.tracker.Available())

	snap := c.cache.Snapshot(now)
	if err := c.publisher.Publish(ctx, snap); err != nil {
		logger.Warn().
			Str("device", c.deviceID).
			Err(err).
			Msg("Failed to publish snapshot")
	}

	c.cache.EndTick()
}

func (c *Coordinator) fetchFields(ctx context.Context) (inverter.Fields, error) {
	body, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return inverter.Fields{}, err
	}

	return inverter.Extract(body)
}

// logFetchFailure keeps failure records non-alerting: unreachability is
// overwhelmingly night mode. Parse failures are surfaced louder because
// they indicate an unsupported firmware variant, not connectivity loss.
func (c *Coordinator) logFetchFailure(err error) {
	event := logger.Debug()
	if inverter.IsParseFailure(err) {
		event = logger.Warn()
	}

	code := errors.ErrorCode("unknown")
	var appErr errors.Error
	if errors.As(err, &appErr) {
		code = appErr.Code()
	}

	event.
		Str("device", c.deviceID).
		Str("kind", string(code)).
		Int("consecutive_failures", c.tracker.ConsecutiveFailures()).
		Str("state", c.tracker.State().String()).
		Err(err).
		Msg("Fetch failed")
}

func (c *Coordinator) merge(ctx context.Context, due []Category, fields inverter.Fields, now time.Time) {
	for _, cat := range due {
		c.cache.Update(categoryFields(cat, fields), now)
		c.schedule.MarkFetched(cat, now)

		if cat == CategoryEnergy {
			c.persistEnergy(ctx, now)
		}
	}
}

// persistEnergy writes the current counters through to the durable store.
// A storage error is logged but never fails the tick.
func (c *Coordinator) persistEnergy(ctx context.Context, now time.Time) {
	today, total := c.cache.Energy()
	rec := cache.EnergyRecord{
		EnergyToday: today,
		EnergyTotal: total,
		UpdatedAt:   now,
	}

	if err := c.store.SaveEnergy(ctx, c.deviceID, rec); err != nil {
		logger.Warn().
			Str("device", c.deviceID).
			Err(err).
			Msg("Failed to persist energy state")
	}
}

// categoryFields selects the subset of extracted fields owned by one
// category. Absent fields (nil pointers) are skipped so cached values are
// left untouched.
func categoryFields(cat Category, f inverter.Fields) map[string]any {
	upd := make(map[string]any)

	switch cat {
	case CategoryPower:
		if f.Power != nil {
			upd[cache.FieldPower] = *f.Power
		}
	case CategoryEnergy:
		if f.EnergyToday != nil {
			upd[cache.FieldEnergyToday] = *f.EnergyToday
		}
		if f.EnergyTotal != nil {
			upd[cache.FieldEnergyTotal] = *f.EnergyTotal
		}
	case CategoryWifi:
		if f.WifiSSID != nil {
			upd[cache.FieldWifiSSID] = *f.WifiSSID
		}
		if f.WifiSignal != nil {
			upd[cache.FieldWifiSignal] = *f.WifiSignal
		}
	case CategoryDevice:
		if f.SerialNumber != nil {
			upd[cache.FieldSerialNumber] = *f.SerialNumber
		}
		if f.FirmwareVersion != nil {
			upd[cache.FieldFirmwareVersion] = *f.FirmwareVersion
		}
		if f.MACAddress != nil {
			upd[cache.FieldMACAddress] = *f.MACAddress
		}
	}

	return upd
}
