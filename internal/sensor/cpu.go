package sensor

import (
	"context"
	"strings"

	"codeberg.org/mutker/unifanctl/internal/errors"
	"github.com/shirou/gopsutil/v3/host"
)

// cpuKeys lists sensor key fragments in order of preference. Package and
// control temperatures beat per-core readings; the ACPI zone is a last resort.
var cpuKeys = []string{
	"package_id",
	"tctl",
	"tdie",
	"coretemp",
	"k10temp",
	"zenpower",
	"cpu_thermal",
	"cpu",
	"acpitz",
}

type temperatureReader func(ctx context.Context) ([]host.TemperatureStat, error)

// CPU reads the processor temperature through gopsutil.
type CPU struct {
	read temperatureReader
}

// NewCPU returns the CPU temperature source.
func NewCPU() *CPU {
	return &CPU{read: host.SensorsTemperaturesWithContext}
}

func (*CPU) Name() string {
	return "cpu"
}

func (c *CPU) Read(ctx context.Context) (Celsius, error) {
	errFactory := errors.New()

	// gopsutil returns partial results together with warnings for unreadable
	// hwmon entries, so only an empty result counts as failure.
	temps, err := c.read(ctx)
	if len(temps) == 0 {
		if err != nil {
			return 0, errFactory.Wrap(ErrSensorUnavailable, err)
		}
		return 0, errFactory.WithData(ErrSensorUnavailable, "no temperature sensors reported")
	}

	stat, ok := pickCPU(temps)
	if !ok {
		return 0, errFactory.WithData(ErrSensorUnavailable, "no CPU temperature sensor")
	}

	return Celsius(stat.Temperature), nil
}

func (*CPU) Close() error {
	return nil
}

func pickCPU(temps []host.TemperatureStat) (host.TemperatureStat, bool) {
	for _, key := range cpuKeys {
		for _, t := range temps {
			if strings.Contains(strings.ToLower(t.SensorKey), key) {
				return t, true
			}
		}
	}

	return host.TemperatureStat{}, false
}
