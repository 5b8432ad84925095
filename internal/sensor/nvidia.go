package sensor

import (
	"context"

	"codeberg.org/mutker/unifanctl/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlController abstracts NVML operations for testing
type nvmlController interface {
	Initialize() error
	Shutdown() error
	GetDeviceCount() (int, error)
	GetDevice(index int) (nvmlDevice, error)
}

// nvmlDevice is the part of nvml.Device the sensor needs.
type nvmlDevice interface {
	GetName() (string, nvml.Return)
	GetTemperature(sensor nvml.TemperatureSensors) (uint32, nvml.Return)
}

type nvmlWrapper struct {
	initialized bool
}

func (w *nvmlWrapper) Initialize() error {
	errFactory := errors.New()
	if w.initialized {
		return nil
	}

	ret := nvml.Init()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrNVMLInitFailed, newNVMLError(ret))
	}

	w.initialized = true

	return nil
}

func (w *nvmlWrapper) Shutdown() error {
	errFactory := errors.New()
	if !w.initialized {
		return nil
	}

	ret := nvml.Shutdown()
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrNVMLShutdown, newNVMLError(ret))
	}

	w.initialized = false

	return nil
}

func (w *nvmlWrapper) GetDeviceCount() (int, error) {
	count, ret := nvml.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		return 0, errors.New().Wrap(ErrNoGPU, newNVMLError(ret))
	}

	return count, nil
}

func (w *nvmlWrapper) GetDevice(index int) (nvmlDevice, error) {
	device, ret := nvml.DeviceGetHandleByIndex(index)
	if !IsNVMLSuccess(ret) {
		return nil, errors.New().Wrap(ErrNoGPU, newNVMLError(ret))
	}

	return device, nil
}

// Nvidia reads the temperature of the first NVIDIA GPU through NVML.
type Nvidia struct {
	nvml   nvmlController
	device nvmlDevice
	model  string
}

// NewNvidia initializes NVML and binds to GPU 0. It fails when the driver is
// missing or no adapter is present.
func NewNvidia() (*Nvidia, error) {
	return newNvidia(&nvmlWrapper{})
}

func newNvidia(ctl nvmlController) (*Nvidia, error) {
	errFactory := errors.New()
	if err := ctl.Initialize(); err != nil {
		return nil, err
	}

	count, err := ctl.GetDeviceCount()
	if err != nil {
		_ = ctl.Shutdown()
		return nil, err
	}
	if count == 0 {
		_ = ctl.Shutdown()
		return nil, errFactory.WithData(ErrNoGPU, "no NVIDIA adapter present")
	}

	device, err := ctl.GetDevice(0)
	if err != nil {
		_ = ctl.Shutdown()
		return nil, err
	}

	n := &Nvidia{nvml: ctl, device: device}
	if name, ret := device.GetName(); IsNVMLSuccess(ret) {
		n.model = name
	}

	return n, nil
}

func (*Nvidia) Name() string {
	return "nvidia"
}

// Model returns the adapter name reported by the driver, if any.
func (n *Nvidia) Model() string {
	return n.model
}

func (n *Nvidia) Read(_ context.Context) (Celsius, error) {
	temp, ret := n.device.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return 0, errors.New().Wrap(ErrSensorUnavailable, newNVMLError(ret))
	}

	return Celsius(temp), nil
}

func (n *Nvidia) Close() error {
	return n.nvml.Shutdown()
}
