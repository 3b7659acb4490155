package inverter

import "codeberg.org/halvor/sunmon/internal/errors"

const (
	// Transport errors
	ErrFetchTimeout      = errors.ErrorCode("inverter_fetch_timeout")
	ErrConnectionRefused = errors.ErrorCode("inverter_connection_refused")
	ErrHTTPStatus        = errors.ErrorCode("inverter_http_status")
	ErrAuthFailed        = errors.ErrorCode("inverter_auth_failed")
	ErrRequestFailed     = errors.ErrorCode("inverter_request_failed")

	// Parse errors
	ErrMalformedResponse = errors.ErrorCode("inverter_malformed_response")

	// Diagnostic errors
	ErrDumpFailed = errors.ErrorCode("inverter_dump_failed")
)

// IsParseFailure reports whether err indicates an unrecognizable status page
// rather than a connectivity problem.
func IsParseFailure(err error) bool {
	return errors.HasCode(err, ErrMalformedResponse)
}
