package metrics

import "codeberg.org/mutker/unifanctl/internal/errors"

const (
	ErrInvalidConfig   = errors.ErrInvalidConfig
	ErrInvalidTextfile = errors.ErrorCode("metrics_invalid_textfile")
	ErrWriteTextfile   = errors.ErrorCode("metrics_write_textfile_failed")
	ErrServiceShutdown = errors.ErrShutdownFailed
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrInvalidTextfile: "Metrics textfile must end in .prom",
		ErrWriteTextfile:   "Failed to write metrics textfile",
	})
}
