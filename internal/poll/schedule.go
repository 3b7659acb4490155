package poll

import "time"

// Category groups fields that share one refresh interval.
type Category int

const (
	CategoryPower Category = iota
	CategoryEnergy
	CategoryWifi
	CategoryDevice
)

var categories = []Category{CategoryPower, CategoryEnergy, CategoryWifi, CategoryDevice}

func (c Category) String() string {
	switch c {
	case CategoryPower:
		return "power"
	case CategoryEnergy:
		return "energy"
	case CategoryWifi:
		return "wifi"
	case CategoryDevice:
		return "device"
	default:
		return "unknown"
	}
}

// Fixed refresh tiers for data that rarely changes. Not user-configurable;
// chosen to keep load on the embedded web server minimal.
const (
	WifiInterval       = 15 * time.Minute
	DeviceInfoInterval = 24 * time.Hour
)

// isDue is the tiering decision: a category is due when at least its
// interval has elapsed since its last successful fetch. A zero lastFetch
// (startup) is always due.
func isDue(lastFetch time.Time, interval time.Duration, now time.Time) bool {
	if lastFetch.IsZero() {
		return true
	}

	return now.Sub(lastFetch) >= interval
}

// Schedule tracks per-category due times for one device.
type Schedule struct {
	updateInterval time.Duration
	lastFetch      map[Category]time.Time
}

func NewSchedule(updateInterval time.Duration) *Schedule {
	return &Schedule{
		updateInterval: updateInterval,
		lastFetch:      make(map[Category]time.Time),
	}
}

func (s *Schedule) interval(c Category) time.Duration {
	switch c {
	case CategoryWifi:
		return WifiInterval
	case CategoryDevice:
		return DeviceInfoInterval
	default:
		return s.updateInterval
	}
}

// IsDue reports whether the category should be fetched now.
func (s *Schedule) IsDue(c Category, now time.Time) bool {
	return isDue(s.lastFetch[c], s.interval(c), now)
}

// Due returns every category due at now.
func (s *Schedule) Due(now time.Time) []Category {
	var due []Category
	for _, c := range categories {
		if s.IsDue(c, now) {
			due = append(due, c)
		}
	}

	return due
}

// MarkFetched records a successful fetch of the category. Failed fetches
// are not recorded, so the category stays due and retries on the next tick.
func (s *Schedule) MarkFetched(c Category, now time.Time) {
	s.lastFetch[c] = now
}

// TickInterval is the coordinator's wall-clock tick: the smallest
// configured category interval.
func (s *Schedule) TickInterval() time.Duration {
	smallest := s.updateInterval
	for _, c := range categories {
		if iv := s.interval(c); iv < smallest {
			smallest = iv
		}
	}

	return smallest
}
