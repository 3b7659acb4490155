package publish

import "codeberg.org/halvor/sunmon/internal/errors"

const (
	ErrInvalidSinkConfig = errors.ErrorCode("publish_invalid_sink_config")
	ErrWriteFailed       = errors.ErrorCode("publish_write_failed")
)
