package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/blesh/internal/device"
)

// NewProperties maps ble.Property bit flags onto device.Properties.
// Broadcast, signed writes and extended properties have no session-level meaning and are dropped.
func NewProperties(p ble.Property) device.Properties {
	var props device.Properties

	if p&ble.CharRead != 0 {
		props |= device.PropRead
	}
	if p&ble.CharWrite != 0 {
		props |= device.PropWrite
	}
	if p&ble.CharWriteNR != 0 {
		props |= device.PropWriteWithoutResponse
	}
	if p&ble.CharNotify != 0 {
		props |= device.PropNotify
	}
	if p&ble.CharIndicate != 0 {
		props |= device.PropIndicate
	}

	return props
}
