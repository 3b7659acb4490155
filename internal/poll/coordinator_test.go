package poll_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"codeberg.org/halvor/sunmon/internal/cache"
	"codeberg.org/halvor/sunmon/internal/inverter"
	"codeberg.org/halvor/sunmon/internal/poll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDevice = "192.168.1.50"

type fetchResult struct {
	body []byte
	err  error
}

// scriptedFetcher replays a fixed sequence of fetch outcomes; the last
// outcome repeats once the script is exhausted.
type scriptedFetcher struct {
	script []fetchResult
	calls  int
}

func (f *scriptedFetcher) Fetch(_ context.Context) ([]byte, error) {
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++

	r := f.script[i]

	return r.body, r.err
}

type capturePublisher struct {
	snaps []cache.Snapshot
}

func (p *capturePublisher) Publish(_ context.Context, snap cache.Snapshot) error {
	p.snaps = append(p.snaps, snap)
	return nil
}

// memStore is an in-memory cache.Repository for restart scenarios.
type memStore struct {
	recs map[string]cache.EnergyRecord
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]cache.EnergyRecord)}
}

func (s *memStore) SaveEnergy(_ context.Context, deviceID string, rec cache.EnergyRecord) error {
	s.recs[deviceID] = rec
	return nil
}

func (s *memStore) LoadEnergy(_ context.Context, deviceID string) (cache.EnergyRecord, bool, error) {
	rec, ok := s.recs[deviceID]
	return rec, ok, nil
}

func (s *memStore) Close() error { return nil }

func statusPage(power, today, total string) []byte {
	return []byte(fmt.Sprintf(`<html><body><script type="text/javascript">
var webdata_sn = "4151000123";
var webdata_msvn = "";
var webdata_now_p = "%s";
var webdata_today_e = "%s";
var webdata_total_e = "%s";
var cover_mid = "1699000456";
var cover_ver = "MW3_16U_5406_1.53";
var cover_sta_ssid = "HomeWifi";
var cover_sta_rssi = "78%%";
</script></body></html>`, power, today, total))
}

func failure() fetchResult {
	return fetchResult{err: context.DeadlineExceeded}
}

func success(power, today, total string) fetchResult {
	return fetchResult{body: statusPage(power, today, total)}
}

func newCoordinator(t *testing.T, fetcher inverter.Fetcher, store cache.Repository, pub poll.Publisher) *poll.Coordinator {
	t.Helper()
	c, err := poll.New(poll.Config{
		DeviceID:       testDevice,
		UpdateInterval: 30 * time.Second,
	}, fetcher, store, pub)
	require.NoError(t, err)

	return c
}

func TestCoordinatorRejectsOutOfRangeInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, 9 * time.Second, 3601 * time.Second} {
		_, err := poll.New(poll.Config{
			DeviceID:       testDevice,
			UpdateInterval: interval,
		}, &scriptedFetcher{script: []fetchResult{failure()}}, cache.NoopRepository{}, &capturePublisher{})
		assert.Error(t, err, "interval %s", interval)
	}
}

func TestColdStartSnapshotFullyPopulated(t *testing.T) {
	c := newCoordinator(t, &scriptedFetcher{script: []fetchResult{failure()}}, cache.NoopRepository{}, &capturePublisher{})

	snap := c.Snapshot()

	assert.False(t, snap.Available)
	assert.Equal(t, 0.0, snap.Float(cache.FieldPower))
	assert.Equal(t, 0.0, snap.Float(cache.FieldEnergyToday))
	assert.Equal(t, 0.0, snap.Float(cache.FieldEnergyTotal))
	assert.Equal(t, "unknown", snap.Text(cache.FieldWifiSSID))
	assert.Equal(t, "unknown", snap.Text(cache.FieldSerialNumber))
	assert.Equal(t, "unknown", snap.Text(cache.FieldFirmwareVersion))
	assert.Equal(t, "unknown", snap.Text(cache.FieldMACAddress))

	// Every field is present even though nothing was ever fetched.
	for _, name := range []string{
		cache.FieldPower, cache.FieldEnergyToday, cache.FieldEnergyTotal,
		cache.FieldWifiSSID, cache.FieldWifiSignal,
		cache.FieldSerialNumber, cache.FieldFirmwareVersion, cache.FieldMACAddress,
	} {
		_, ok := snap.Fields[name]
		assert.True(t, ok, "field %s missing from snapshot", name)
	}
}

func TestCoordinatorDegradedThenRecovers(t *testing.T) {
	pub := &capturePublisher{}
	fetcher := &scriptedFetcher{script: []fetchResult{
		failure(),
		failure(),
		success("399.0", "0.5", "381.5"),
	}}
	c := newCoordinator(t, fetcher, cache.NoopRepository{}, pub)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		c.RunTick(ctx, t0.Add(time.Duration(i)*30*time.Second))
	}

	require.Len(t, pub.snaps, 3)

	// Two failures stay below the offline threshold.
	assert.True(t, pub.snaps[0].Available)
	assert.True(t, pub.snaps[1].Available)

	assert.True(t, pub.snaps[2].Available)
	assert.Equal(t, 399.0, pub.snaps[2].Float(cache.FieldPower))
	assert.Equal(t, 0.5, pub.snaps[2].Float(cache.FieldEnergyToday))
	assert.Equal(t, 381.5, pub.snaps[2].Float(cache.FieldEnergyTotal))
	assert.Equal(t, "HomeWifi", pub.snaps[2].Text(cache.FieldWifiSSID))
	assert.Equal(t, "4151000123", pub.snaps[2].Text(cache.FieldSerialNumber))
}

func TestCoordinatorOfflineAfterThreeFailuresRetainsDefaults(t *testing.T) {
	pub := &capturePublisher{}
	c := newCoordinator(t, &scriptedFetcher{script: []fetchResult{failure()}}, cache.NoopRepository{}, pub)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		c.RunTick(ctx, t0.Add(time.Duration(i)*30*time.Second))
	}

	require.Len(t, pub.snaps, 3)
	assert.False(t, pub.snaps[2].Available)
	assert.Equal(t, 0.0, pub.snaps[2].Float(cache.FieldPower))
	assert.Equal(t, 0.0, pub.snaps[2].Float(cache.FieldEnergyTotal))
	assert.Equal(t, "unknown", pub.snaps[2].Text(cache.FieldWifiSSID))
}

func TestCoordinatorOfflineRetainsLastValues(t *testing.T) {
	pub := &capturePublisher{}
	fetcher := &scriptedFetcher{script: []fetchResult{
		success("250.0", "1.2", "400.0"),
		failure(),
	}}
	c := newCoordinator(t, fetcher, cache.NoopRepository{}, pub)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		c.RunTick(ctx, t0.Add(time.Duration(i)*30*time.Second))
	}

	last := pub.snaps[len(pub.snaps)-1]
	assert.False(t, last.Available)
	assert.Equal(t, 250.0, last.Float(cache.FieldPower))
	assert.Equal(t, 1.2, last.Float(cache.FieldEnergyToday))
	assert.Equal(t, 400.0, last.Float(cache.FieldEnergyTotal))
	assert.Equal(t, "HomeWifi", last.Text(cache.FieldWifiSSID))
}

// Simulated night: the device answers once, disappears for 200 ticks, then
// answers again. Energy must never decrease or reset during the outage, and
// availability must recover on the first success.
func TestCoordinatorNightMode(t *testing.T) {
	pub := &capturePublisher{}
	script := []fetchResult{success("399.0", "0.5", "381.5")}
	for i := 0; i < 200; i++ {
		script = append(script, failure())
	}
	script = append(script, success("12.0", "0.1", "381.6"))
	fetcher := &scriptedFetcher{script: script}

	store := newMemStore()
	c := newCoordinator(t, fetcher, store, pub)

	ctx := context.Background()
	for i := 0; i < 202; i++ {
		c.RunTick(ctx, t0.Add(time.Duration(i)*30*time.Second))
	}

	require.Len(t, pub.snaps, 202)

	prevTotal := 0.0
	for i, snap := range pub.snaps {
		total := snap.Float(cache.FieldEnergyTotal)
		assert.GreaterOrEqual(t, total, prevTotal, "energy_total decreased at tick %d", i+1)
		prevTotal = total
	}

	// Offline declared only after the third consecutive failure.
	assert.True(t, pub.snaps[1].Available)
	assert.True(t, pub.snaps[2].Available)
	assert.False(t, pub.snaps[3].Available)
	assert.False(t, pub.snaps[200].Available)

	// Instant recovery with fresh values.
	final := pub.snaps[201]
	assert.True(t, final.Available)
	assert.Equal(t, 12.0, final.Float(cache.FieldPower))
	assert.Equal(t, 381.6, final.Float(cache.FieldEnergyTotal))

	// Night-long outage never erased the persisted counters.
	rec, ok, err := store.LoadEnergy(ctx, testDevice)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 381.6, rec.EnergyTotal)
}

func TestCoordinatorSlowTiersNotRefetched(t *testing.T) {
	pub := &capturePublisher{}
	fetcher := &scriptedFetcher{script: []fetchResult{
		success("100.0", "0.2", "380.0"),
		// Second tick answers with different diagnostics; they must be
		// ignored because wifi and device identity are not due yet.
		{body: []byte(`<html><script>
var webdata_sn = "9999999999";
var webdata_now_p = "110.0";
var webdata_today_e = "0.3";
var webdata_total_e = "380.1";
var cover_mid = "0000000000";
var cover_ver = "OTHER_FIRMWARE";
var cover_sta_ssid = "OtherWifi";
var cover_sta_rssi = "12%";
</script></html>`)},
	}}
	c := newCoordinator(t, fetcher, cache.NoopRepository{}, pub)

	ctx := context.Background()
	c.RunTick(ctx, t0)
	c.RunTick(ctx, t0.Add(30*time.Second))

	require.Len(t, pub.snaps, 2)
	second := pub.snaps[1]

	// Fast tier refreshed.
	assert.Equal(t, 110.0, second.Float(cache.FieldPower))
	assert.Equal(t, 0.3, second.Float(cache.FieldEnergyToday))

	// Slow tiers republished unchanged from cache.
	assert.Equal(t, "HomeWifi", second.Text(cache.FieldWifiSSID))
	assert.Equal(t, "4151000123", second.Text(cache.FieldSerialNumber))
	assert.True(t, second.Fields[cache.FieldWifiSSID].FromCache)
	assert.False(t, second.Fields[cache.FieldPower].FromCache)
}

func TestCoordinatorFreshnessAnnotationIsTransient(t *testing.T) {
	pub := &capturePublisher{}
	c := newCoordinator(t, &scriptedFetcher{script: []fetchResult{
		success("100.0", "0.2", "380.0"),
	}}, cache.NoopRepository{}, pub)

	ctx := context.Background()
	c.RunTick(ctx, t0)

	// Nothing due a few seconds later; the tick still republishes, now
	// fully from cache.
	c.RunTick(ctx, t0.Add(5*time.Second))

	require.Len(t, pub.snaps, 2)
	assert.False(t, pub.snaps[0].Fields[cache.FieldPower].FromCache)
	assert.True(t, pub.snaps[1].Fields[cache.FieldPower].FromCache)
	assert.Equal(t, pub.snaps[0].Float(cache.FieldPower), pub.snaps[1].Float(cache.FieldPower))
}

func TestCoordinatorRestartRestoresEnergy(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	first := newCoordinator(t, &scriptedFetcher{script: []fetchResult{
		success("399.0", "0.5", "381.5"),
	}}, store, &capturePublisher{})
	first.RunTick(ctx, t0)

	// Restart: a new coordinator against the same store, device silent.
	pub := &capturePublisher{}
	second := newCoordinator(t, &scriptedFetcher{script: []fetchResult{failure()}}, store, pub)
	second.RunTick(ctx, t0.Add(time.Hour))

	require.Len(t, pub.snaps, 1)
	snap := pub.snaps[0]
	assert.Equal(t, 0.5, snap.Float(cache.FieldEnergyToday))
	assert.Equal(t, 381.5, snap.Float(cache.FieldEnergyTotal))

	// Point-in-time and diagnostic fields do not survive the restart.
	assert.Equal(t, 0.0, snap.Float(cache.FieldPower))
	assert.Equal(t, "unknown", snap.Text(cache.FieldWifiSSID))
}

func TestCoordinatorZeroEnergyGlitchKeepsCounters(t *testing.T) {
	pub := &capturePublisher{}
	fetcher := &scriptedFetcher{script: []fetchResult{
		success("399.0", "0.5", "381.5"),
		success("0", "0.0", "0.0"),
	}}
	c := newCoordinator(t, fetcher, cache.NoopRepository{}, pub)

	ctx := context.Background()
	c.RunTick(ctx, t0)
	c.RunTick(ctx, t0.Add(30*time.Second))

	second := pub.snaps[1]
	// Power genuinely reads zero; the cumulative counters keep their
	// previous values because a zero counter is a device glitch.
	assert.Equal(t, 0.0, second.Float(cache.FieldPower))
	assert.Equal(t, 0.5, second.Float(cache.FieldEnergyToday))
	assert.Equal(t, 381.5, second.Float(cache.FieldEnergyTotal))
}

func TestCoordinatorMalformedPageCountsAsFailure(t *testing.T) {
	pub := &capturePublisher{}
	fetcher := &scriptedFetcher{script: []fetchResult{
		{body: []byte("<html>login required</html>")},
	}}
	c := newCoordinator(t, fetcher, cache.NoopRepository{}, pub)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		c.RunTick(ctx, t0.Add(time.Duration(i)*30*time.Second))
	}

	assert.False(t, pub.snaps[2].Available)
}
