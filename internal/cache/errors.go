package cache

import "codeberg.org/halvor/sunmon/internal/errors"

const (
	// Configuration errors
	ErrInvalidDBPath = errors.ErrorCode("cache_invalid_db_path")

	// Schema errors
	ErrSchemaInitFailed       = errors.ErrorCode("cache_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("cache_schema_validation_failed")

	// Storage errors
	ErrStorageInit   = errors.ErrorCode("cache_storage_init_failed")
	ErrStorageAccess = errors.ErrorCode("cache_storage_access_failed")
	ErrStorageClose  = errors.ErrorCode("cache_storage_close_failed")
)
