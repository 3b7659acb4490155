package publish

import (
	"context"

	"codeberg.org/halvor/sunmon/internal/cache"
	"codeberg.org/halvor/sunmon/internal/errors"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

const measurement = "inverter"

// InfluxPublisher writes each snapshot as one InfluxDB point. Writes are
// blocking so a tick's data is delivered before the next tick starts.
type InfluxPublisher struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func (c InfluxConfig) Validate() error {
	errFactory := errors.New()
	if c.URL == "" || c.Org == "" || c.Bucket == "" {
		return errFactory.WithData(ErrInvalidSinkConfig, "influx url, org and bucket are required")
	}
	return nil
}

func NewInfluxPublisher(cfg InfluxConfig) (*InfluxPublisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	return &InfluxPublisher{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

func (p *InfluxPublisher) Publish(ctx context.Context, snap cache.Snapshot) error {
	errFactory := errors.New()

	point := influxdb2.NewPoint(
		measurement,
		map[string]string{
			"device": snap.DeviceID,
		},
		map[string]interface{}{
			"power_w":          snap.Float(cache.FieldPower),
			"energy_today_kwh": snap.Float(cache.FieldEnergyToday),
			"energy_total_kwh": snap.Float(cache.FieldEnergyTotal),
			"wifi_signal":      snap.Text(cache.FieldWifiSignal),
			"available":        snap.Available,
		},
		snap.TakenAt,
	)

	if err := p.writeAPI.WritePoint(ctx, point); err != nil {
		return errFactory.Wrap(ErrWriteFailed, err)
	}

	return nil
}

func (p *InfluxPublisher) Close() error {
	p.client.Close()
	return nil
}
