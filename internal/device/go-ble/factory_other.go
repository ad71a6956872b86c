//go:build !darwin && !linux

package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/blesh/internal/device"
)

func newDefaultDevice() (ble.Device, error) {
	return nil, device.ErrUnsupported
}
