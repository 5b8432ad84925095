// Package sensor provides the host temperature sources used by the quiet modes.
package sensor

import (
	"codeberg.org/mutker/unifanctl/internal/logger"
)

// Select picks the source for kind once at startup. GPU prefers NVIDIA and
// falls back to AMD when no NVIDIA adapter is usable. KindNone returns nil.
func Select(kind Kind, log logger.Logger) Source {
	switch kind {
	case KindCPU:
		return NewCPU()
	case KindGPU:
		nv, err := NewNvidia()
		if err == nil {
			log.Info().Str("model", nv.Model()).Msg("Using NVIDIA GPU temperature")
			return nv
		}
		log.Debug().Err(err).Msg("NVIDIA GPU not available, falling back to AMD")

		amd := NewAMD()
		if !amd.Present() {
			log.Warn().Msg("No GPU temperature sensor detected")
		}

		return amd
	default:
		return nil
	}
}
