// Package device owns the HID handle of the fan controller.
package device

import (
	"fmt"
	"sync"
	"time"

	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/logger"
	"codeberg.org/mutker/unifanctl/internal/protocol"
)

// Controller serialises every access to one open controller. Writes from the
// control loop and from one-shot commands go through the same mutex so two
// reports never interleave on the wire.
type Controller struct {
	mu        sync.Mutex
	dev       hidDevice
	productID uint16
	pacing    Pacing
	logger    logger.Logger
	opener    Opener
	closed    bool
	// broken is set by any failed write and cleared by Reconnect.
	broken bool
}

var _ Transport = (*Controller)(nil)

type options struct {
	opener Opener
	pacing Pacing
	logger logger.Logger
}

// Option configures Open.
type Option func(*options)

// WithOpener replaces the hidapi opener.
func WithOpener(o Opener) Option {
	return func(opts *options) {
		opts.opener = o
	}
}

// WithPacing overrides the inter-command delays.
func WithPacing(p Pacing) Option {
	return func(opts *options) {
		opts.pacing = p
	}
}

// WithLogger sets the logger used by the controller.
func WithLogger(l logger.Logger) Option {
	return func(opts *options) {
		opts.logger = l
	}
}

// Open tries every supported product ID in table order and returns the first
// controller that opens.
func Open(opts ...Option) (*Controller, error) {
	o := options{
		opener: openHID,
		pacing: DefaultPacing(),
		logger: logger.Get().WithComponent("device"),
	}
	for _, opt := range opts {
		opt(&o)
	}

	dev, pid, err := openFirst(o.opener, o.logger)
	if err != nil {
		return nil, err
	}

	return &Controller{
		dev:       dev,
		productID: pid,
		pacing:    o.pacing,
		logger:    o.logger,
		opener:    o.opener,
	}, nil
}

func openFirst(opener Opener, log logger.Logger) (hidDevice, uint16, error) {
	var lastErr error
	for _, pid := range protocol.ProductIDs {
		dev, err := opener(protocol.VendorID, pid)
		if err != nil {
			log.Debug().Err(err).Msgf("No device at %04x:%04x", protocol.VendorID, pid)
			lastErr = err
			continue
		}

		log.Info().Msgf("Connected to device VID:%04x PID:%04x", protocol.VendorID, pid)

		return dev, pid, nil
	}

	return nil, 0, errors.New().Wrap(ErrDeviceNotFound,
		fmt.Errorf("tried %d product IDs for vendor %04x: %w", len(protocol.ProductIDs), protocol.VendorID, lastErr))
}

// Broken reports whether a write failed since the handle was opened.
func (c *Controller) Broken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.broken
}

// Reconnect drops the current handle, opens the controller again and
// resends the init sequence. The controller stays broken when either fails.
func (c *Controller) Reconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New().New(ErrClosed)
	}
	if err := c.dev.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to close stale handle")
	}

	dev, pid, err := openFirst(c.opener, c.logger)
	if err != nil {
		c.dev = brokenDevice{}
		c.mu.Unlock()
		return err
	}
	c.dev = dev
	c.productID = pid
	c.broken = false
	c.mu.Unlock()

	return c.Init()
}

// ProductID returns the product ID the controller was opened with.
func (c *Controller) ProductID() uint16 {
	return c.productID
}

// Init puts every channel under software control and logs the status report.
func (c *Controller) Init() error {
	for _, cmd := range protocol.InitSequence() {
		if err := c.SendFeature(cmd); err != nil {
			return errors.New().Wrap(ErrInitFailed, err)
		}
		c.logger.Debug().Hex("command", cmd).Msg("Sent init command")
		time.Sleep(c.pacing.Init)
	}

	status, err := c.Read()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read status report, skipping")
		return nil
	}
	c.logger.Debug().Hex("status", status).Msg("Read status after init")

	return nil
}

func (c *Controller) Send(report protocol.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.write(c.dev.Write, report); err != nil {
		return err
	}
	time.Sleep(c.pacing.Report)

	return nil
}

func (c *Controller) SendFeature(report []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.write(c.dev.SendFeatureReport, report)
}

// Commit sends the latch sequence that makes the last color report visible.
func (c *Controller) Commit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cmd := range protocol.CommitSequence() {
		if err := c.write(c.dev.SendFeatureReport, cmd); err != nil {
			return err
		}
		time.Sleep(c.pacing.Commit)
	}

	return nil
}

func (c *Controller) Read() ([]byte, error) {
	errFactory := errors.New()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errFactory.New(ErrClosed)
	}

	buf := make([]byte, protocol.FeatureReadSize)
	buf[0] = protocol.ReportID
	n, err := c.dev.GetFeatureReport(buf)
	if err != nil {
		return nil, errFactory.Wrap(ErrIOFailure, err)
	}

	return buf[:n], nil
}

func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if err := c.dev.Close(); err != nil {
		return errors.New().Wrap(errors.ErrCloseDevice, err)
	}

	return nil
}

// write must be called with mu held.
func (c *Controller) write(fn func([]byte) (int, error), p []byte) error {
	errFactory := errors.New()
	if c.closed {
		return errFactory.New(ErrClosed)
	}

	n, err := fn(p)
	if err != nil {
		c.broken = true
		return errFactory.Wrap(ErrIOFailure, err)
	}
	if n < len(p) {
		c.broken = true
		return errFactory.WithData(ErrIOFailure, fmt.Sprintf("short write: %d of %d bytes", n, len(p)))
	}

	return nil
}

// brokenDevice stands in for a handle that could not be reopened.
type brokenDevice struct{}

func (brokenDevice) Write(_ []byte) (int, error) {
	return 0, errors.New().New(ErrDeviceNotFound)
}

func (brokenDevice) SendFeatureReport(_ []byte) (int, error) {
	return 0, errors.New().New(ErrDeviceNotFound)
}

func (brokenDevice) GetFeatureReport(_ []byte) (int, error) {
	return 0, errors.New().New(ErrDeviceNotFound)
}

func (brokenDevice) Close() error { return nil }
