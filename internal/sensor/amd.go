package sensor

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"codeberg.org/mutker/unifanctl/internal/errors"
)

const (
	defaultDRMPath = "/sys/class/drm"
	amdVendorID    = "0x1002"
)

// AMD reads the edge temperature of the first AMD GPU from sysfs hwmon.
// The hwmon path is resolved lazily and re-resolved after a failed read,
// since hwmon indices change when the amdgpu driver reloads.
type AMD struct {
	root string
	mu   sync.Mutex
	path string
}

// NewAMD returns an AMD GPU source rooted at /sys/class/drm.
func NewAMD() *AMD {
	return &AMD{root: defaultDRMPath}
}

func (*AMD) Name() string {
	return "amd"
}

// Present reports whether an AMD GPU temperature input exists.
func (a *AMD) Present() bool {
	_, err := a.resolve()
	return err == nil
}

func (a *AMD) Read(_ context.Context) (Celsius, error) {
	path, err := a.resolve()
	if err != nil {
		return 0, err
	}

	temp, err := readMillidegrees(path)
	if err != nil {
		a.mu.Lock()
		a.path = ""
		a.mu.Unlock()
		return 0, errors.New().Wrap(ErrSensorUnavailable, err)
	}

	return temp, nil
}

func (*AMD) Close() error {
	return nil
}

func (a *AMD) resolve() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.path != "" {
		return a.path, nil
	}

	path, err := findAMDTempInput(a.root)
	if err != nil {
		return "", err
	}
	a.path = path

	return path, nil
}

func findAMDTempInput(root string) (string, error) {
	errFactory := errors.New()
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", errFactory.Wrap(ErrSensorUnavailable, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		// skip connectors such as card0-DP-1
		if strings.HasPrefix(e.Name(), "card") && !strings.Contains(e.Name(), "-") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		devicePath := filepath.Join(root, name, "device")
		vendor, err := os.ReadFile(filepath.Join(devicePath, "vendor"))
		if err != nil || strings.TrimSpace(string(vendor)) != amdVendorID {
			continue
		}

		matches, err := filepath.Glob(filepath.Join(devicePath, "hwmon", "hwmon*", "temp1_input"))
		if err != nil || len(matches) == 0 {
			continue
		}
		sort.Strings(matches)

		return matches[0], nil
	}

	return "", errFactory.WithData(ErrSensorUnavailable, "no AMD GPU temperature input")
}

func readMillidegrees(path string) (Celsius, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	milli, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, err
	}

	return Celsius(float64(milli) / 1000), nil
}
