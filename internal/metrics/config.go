package metrics

import (
	"path/filepath"

	"codeberg.org/mutker/unifanctl/internal/errors"
)

type Config struct {
	// Textfile is written for the node exporter textfile collector.
	Textfile string
}

// Enabled reports whether a textfile was configured.
func (c Config) Enabled() bool {
	return c.Textfile != ""
}

func (c Config) Validate() error {
	// the textfile collector ignores anything else
	if c.Enabled() && filepath.Ext(c.Textfile) != ".prom" {
		return errors.New().WithData(ErrInvalidTextfile, c.Textfile)
	}

	return nil
}
