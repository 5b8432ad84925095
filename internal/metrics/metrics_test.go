package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/logger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopWhenTextfileUnset(t *testing.T) {
	c, err := NewService(Config{}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &noopCollector{}, c)

	c.ObserveTarget(1, 1000)
	require.NoError(t, c.Flush())
	require.NoError(t, c.Close())
}

func TestRejectsNonPromTextfile(t *testing.T) {
	_, err := NewService(Config{Textfile: "/tmp/unifanctl.txt"}, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrInvalidTextfile))
}

func TestCollectorValues(t *testing.T) {
	s := newService(Config{Textfile: filepath.Join(t.TempDir(), "unifanctl.prom")}, logger.Nop())

	s.ObserveTemperature("cpu", 55.5)
	s.ObserveTarget(2, 1353)
	s.ReportSent(2, KindColor)
	s.ReportSent(2, KindColor)
	s.ReportSent(2, KindSpeed)
	s.ZoneFailed(3)
	s.CycleCompleted(ResultApplied)
	s.CycleCompleted(ResultSkipped)

	assert.InDelta(t, 55.5, testutil.ToFloat64(s.temperature.WithLabelValues("cpu")), 0.001)
	assert.InDelta(t, 1353.0, testutil.ToFloat64(s.targetRPM.WithLabelValues("2")), 0.001)
	assert.InDelta(t, 2.0, testutil.ToFloat64(s.reportsSent.WithLabelValues("2", KindColor)), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(s.reportsSent.WithLabelValues("2", KindSpeed)), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(s.zoneFailures.WithLabelValues("3")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(s.cycles.WithLabelValues(ResultSkipped)), 0.001)
}

func TestFlushWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unifanctl.prom")
	c, err := NewService(Config{Textfile: path}, logger.Nop())
	require.NoError(t, err)

	c.ObserveTarget(1, 1900)
	c.CycleCompleted(ResultApplied)
	require.NoError(t, c.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, `unifanctl_zone_target_rpm{zone="1"} 1900`), out)
	assert.True(t, strings.Contains(out, `unifanctl_cycles_total{result="applied"} 1`), out)

	require.NoError(t, c.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
