// Package metrics exposes control loop gauges and counters through the node
// exporter textfile collector. There is no listener.
package metrics

import (
	"os"
	"strconv"

	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/logger"
	"codeberg.org/mutker/unifanctl/internal/protocol"
	"codeberg.org/mutker/unifanctl/internal/sensor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "unifanctl"

type service struct {
	cfg      Config
	log      logger.Logger
	registry *prometheus.Registry

	temperature  *prometheus.GaugeVec
	targetRPM    *prometheus.GaugeVec
	reportsSent  *prometheus.CounterVec
	zoneFailures *prometheus.CounterVec
	cycles       *prometheus.CounterVec
}

type noopCollector struct{}

// NewService returns a collector writing to cfg.Textfile, or a no-op collector
// when no textfile is configured.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.New().Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled() {
		log.Debug().Msg("Metrics textfile not configured, using no-op collector")
		return &noopCollector{}, nil
	}

	s := newService(cfg, log)
	log.Debug().Str("textfile", cfg.Textfile).Msg("Metrics service initialized")

	return s, nil
}

func newService(cfg Config, log logger.Logger) *service {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &service{
		cfg:      cfg,
		log:      log,
		registry: reg,

		// temperature is the last reading per sensor
		temperature: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last temperature reading by sensor",
		}, []string{"sensor"}),

		// targetRPM is the speed most recently computed per zone
		targetRPM: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zone_target_rpm",
			Help:      "Target fan speed by zone",
		}, []string{"zone"}),

		reportsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_sent_total",
			Help:      "Total reports written to the controller by zone and kind",
		}, []string{"zone", "kind"}),

		zoneFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_failures_total",
			Help:      "Total failed zone updates by zone",
		}, []string{"zone"}),

		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total control cycles by result",
		}, []string{"result"}),
	}
}

func zoneLabel(zone protocol.Zone) string {
	return strconv.Itoa(int(zone))
}

func (s *service) ObserveTemperature(source string, temp sensor.Celsius) {
	s.temperature.WithLabelValues(source).Set(float64(temp))
}

func (s *service) ObserveTarget(zone protocol.Zone, rpm int) {
	s.targetRPM.WithLabelValues(zoneLabel(zone)).Set(float64(rpm))
}

func (s *service) ReportSent(zone protocol.Zone, kind string) {
	s.reportsSent.WithLabelValues(zoneLabel(zone), kind).Inc()
}

func (s *service) ZoneFailed(zone protocol.Zone) {
	s.zoneFailures.WithLabelValues(zoneLabel(zone)).Inc()
}

func (s *service) CycleCompleted(result string) {
	s.cycles.WithLabelValues(result).Inc()
}

// Flush writes the registry atomically through a temporary file.
func (s *service) Flush() error {
	if err := prometheus.WriteToTextfile(s.cfg.Textfile, s.registry); err != nil {
		return errors.New().Wrap(ErrWriteTextfile, err)
	}

	return nil
}

// Close removes the textfile so stale values are not scraped after exit.
func (s *service) Close() error {
	if err := os.Remove(s.cfg.Textfile); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}

	return nil
}

func (*noopCollector) ObserveTemperature(_ string, _ sensor.Celsius) {}
func (*noopCollector) ObserveTarget(_ protocol.Zone, _ int)          {}
func (*noopCollector) ReportSent(_ protocol.Zone, _ string)          {}
func (*noopCollector) ZoneFailed(_ protocol.Zone)                    {}
func (*noopCollector) CycleCompleted(_ string)                       {}
func (*noopCollector) Flush() error                                  { return nil }
func (*noopCollector) Close() error                                  { return nil }

// Noop returns a collector that records nothing.
func Noop() Collector {
	return &noopCollector{}
}
