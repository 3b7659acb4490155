package inverter

import "context"

// Fetcher performs one authenticated read of the device status page.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Fields holds the values extracted from one status page. A nil pointer
// means the field was absent from the page (or, for the energy counters,
// parsed as zero and therefore untrustworthy).
type Fields struct {
	Power           *float64
	EnergyToday     *float64
	EnergyTotal     *float64
	WifiSSID        *string
	WifiSignal      *string
	SerialNumber    *string
	FirmwareVersion *string
	MACAddress      *string
}
