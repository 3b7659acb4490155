package publish

import (
	"context"

	"codeberg.org/halvor/sunmon/internal/cache"
	"codeberg.org/halvor/sunmon/internal/logger"
)

// LogPublisher writes each snapshot as a structured log line. Always
// installed; it is the monitoring surface when no external sink is
// configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (*LogPublisher) Publish(_ context.Context, snap cache.Snapshot) error {
	logger.Info().
		Str("device", snap.DeviceID).
		Float64("power_w", snap.Float(cache.FieldPower)).
		Float64("energy_today_kwh", snap.Float(cache.FieldEnergyToday)).
		Float64("energy_total_kwh", snap.Float(cache.FieldEnergyTotal)).
		Str("wifi_ssid", snap.Text(cache.FieldWifiSSID)).
		Str("wifi_signal", snap.Text(cache.FieldWifiSignal)).
		Bool("available", snap.Available).
		Msg("")

	return nil
}

func (*LogPublisher) Close() error {
	return nil
}
