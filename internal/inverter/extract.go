package inverter

import (
	"regexp"
	"strconv"
	"strings"

	"codeberg.org/halvor/sunmon/internal/errors"
)

// The status page embeds its data as JavaScript variable assignments, not
// as markup, so extraction matches the assignments directly.
var (
	rePower    = regexp.MustCompile(`var\s+webdata_now_p\s*=\s*"([^"]*)";`)
	reToday    = regexp.MustCompile(`var\s+webdata_today_e\s*=\s*"([^"]*)";`)
	reTotal    = regexp.MustCompile(`var\s+webdata_total_e\s*=\s*"([^"]*)";`)
	reSSID     = regexp.MustCompile(`var\s+cover_sta_ssid\s*=\s*"([^"]*)";`)
	reSignal   = regexp.MustCompile(`var\s+cover_sta_rssi\s*=\s*"([^"]*)";`)
	reSerial   = regexp.MustCompile(`var\s+webdata_sn\s*=\s*"([^"]*)";`)
	reFirmware = regexp.MustCompile(`var\s+cover_ver\s*=\s*"([^"]*)";`)
	reMAC      = regexp.MustCompile(`var\s+cover_mid\s*=\s*"([^"]*)";`)
)

// Extract parses a raw status page into typed fields. It is stateless; the
// caller decides which fields to merge based on its own refresh tiers.
func Extract(body []byte) (Fields, error) {
	errFactory := errors.New()

	page := string(body)

	// webdata_now_p is present on every supported firmware. Its absence
	// means the page is not a recognizable status page at all.
	m := rePower.FindStringSubmatch(page)
	if m == nil {
		return Fields{}, errFactory.WithData(ErrMalformedResponse, "webdata_now_p not found")
	}

	fields := Fields{}
	power := parseNumeric(m[1])
	fields.Power = &power

	// A zero energy counter on an otherwise healthy page is a known device
	// glitch; it is reported as absent so the caller keeps its previous
	// counter instead of resetting a cumulative value.
	if m := reToday.FindStringSubmatch(page); m != nil {
		if v := parseNumeric(m[1]); v > 0 {
			fields.EnergyToday = &v
		}
	}
	if m := reTotal.FindStringSubmatch(page); m != nil {
		if v := parseNumeric(m[1]); v > 0 {
			fields.EnergyTotal = &v
		}
	}

	fields.WifiSSID = matchText(reSSID, page)
	fields.WifiSignal = matchText(reSignal, page)
	fields.SerialNumber = matchText(reSerial, page)
	fields.FirmwareVersion = matchText(reFirmware, page)
	fields.MACAddress = matchText(reMAC, page)

	return fields, nil
}

func matchText(re *regexp.Regexp, page string) *string {
	m := re.FindStringSubmatch(page)
	if m == nil {
		return nil
	}

	s := strings.TrimSpace(m[1])
	if s == "" {
		return nil
	}

	return &s
}

// parseNumeric mirrors the device's own placeholder conventions: blank or
// "---" means no reading.
func parseNumeric(text string) float64 {
	value := strings.TrimSpace(text)
	if value == "" || value == "---" {
		return 0
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}

	return f
}
