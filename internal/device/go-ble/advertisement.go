package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/blesh/internal/device"
)

// txPowerUnavailable is the go-ble sentinel for a missing TX power level
const txPowerUnavailable = 127

// Advertisement is an immutable snapshot of a received ble.Advertisement.
// go-ble may reuse advertisement buffers, so everything is copied.
type Advertisement struct {
	LocalName   string
	Address     string
	RSSI        int
	TxPower     int
	Connectable bool
	Services    []string
}

// NewAdvertisement snapshots a ble.Advertisement
func NewAdvertisement(adv ble.Advertisement) Advertisement {
	services := make([]string, 0, len(adv.Services()))
	for _, svc := range adv.Services() {
		services = append(services, device.NormalizeUUID(svc.String()))
	}

	return Advertisement{
		LocalName:   adv.LocalName(),
		Address:     adv.Addr().String(),
		RSSI:        adv.RSSI(),
		TxPower:     adv.TxPowerLevel(),
		Connectable: adv.Connectable(),
		Services:    services,
	}
}

// properties converts the snapshot into the platform-neutral form
func (a *Advertisement) properties() *device.PeripheralProperties {
	rssi := a.RSSI
	props := &device.PeripheralProperties{
		LocalName:   a.LocalName,
		Address:     a.Address,
		RSSI:        &rssi,
		Connectable: a.Connectable,
		Services:    append([]string(nil), a.Services...),
	}
	if a.TxPower != txPowerUnavailable {
		tx := a.TxPower
		props.TxPower = &tx
	}
	return props
}
