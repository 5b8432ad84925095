package device

import (
	"sync"

	"codeberg.org/mutker/unifanctl/internal/errors"
	"codeberg.org/mutker/unifanctl/internal/protocol"
	"github.com/sstallion/go-hid"
)

var hidInit struct {
	once sync.Once
	err  error
}

func initHID() error {
	hidInit.once.Do(func() {
		hidInit.err = hid.Init()
	})

	return hidInit.err
}

func openHID(vendorID, productID uint16) (hidDevice, error) {
	if err := initHID(); err != nil {
		return nil, err
	}

	dev, err := hid.OpenFirst(vendorID, productID)
	if err != nil {
		return nil, err
	}

	return dev, nil
}

// Shutdown releases the hidapi library. Call once, after every controller is closed.
func Shutdown() error {
	if err := hid.Exit(); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

// Enumerate lists attached controllers with a supported product ID.
func Enumerate() ([]Info, error) {
	errFactory := errors.New()
	if err := initHID(); err != nil {
		return nil, errFactory.Wrap(ErrEnumerate, err)
	}

	var found []Info
	err := hid.Enumerate(protocol.VendorID, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
		if !Supported(info.VendorID, info.ProductID) {
			return nil
		}
		found = append(found, Info{
			Path:      info.Path,
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
			Product:   info.ProductStr,
			Serial:    info.SerialNbr,
		})

		return nil
	})
	if err != nil {
		return nil, errFactory.Wrap(ErrEnumerate, err)
	}

	return found, nil
}

// Supported reports whether the IDs belong to the supported controller table.
func Supported(vendorID, productID uint16) bool {
	if vendorID != protocol.VendorID {
		return false
	}
	for _, pid := range protocol.ProductIDs {
		if pid == productID {
			return true
		}
	}

	return false
}
