package state

import "codeberg.org/mutker/unifanctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidDBPath = errors.ErrorCode("state_invalid_db_path")

	// Schema Errors
	ErrSchemaInitFailed       = errors.ErrorCode("state_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("state_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("state_schema_migration_failed")

	// Storage Errors
	ErrStorageInit  = errors.ErrInitFailed
	ErrStorageClose = errors.ErrShutdownFailed
	ErrSaveFailed   = errors.ErrorCode("state_save_failed")
	ErrLoadFailed   = errors.ErrorCode("state_load_failed")

	ErrOperationTimeout = errors.ErrTimeout
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrInvalidDBPath:          "State database path is empty",
		ErrSchemaInitFailed:       "Failed to initialize state schema",
		ErrSchemaValidationFailed: "Failed to validate state schema",
		ErrSchemaMigrationFailed:  "Failed to migrate state schema",
		ErrSaveFailed:             "Failed to save zone state",
		ErrLoadFailed:             "Failed to load zone state",
	})
}
