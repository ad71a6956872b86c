package goble

import (
	"errors"
	"testing"

	"github.com/srg/blesh/internal/device"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{name: "corebluetooth powered off", in: "central manager has invalid state: have=4 want=5: is Bluetooth turned on?", want: device.ErrBluetoothOff},
		{name: "turned off", in: "Bluetooth is turned off", want: device.ErrBluetoothOff},
		{name: "no hci device", in: "can't init hci: no such device", want: device.ErrNoAdapter},
		{name: "no devices", in: "no devices available", want: device.ErrNoAdapter},
		{name: "not connected", in: "device not connected", want: device.ErrNotConnected},
		{name: "link lost", in: "peripheral disconnected", want: device.ErrNotConnected},
		{name: "already connected", in: "device already connected", want: device.ErrAlreadyConnected},
		{name: "not initialized", in: "connection is not initialized", want: device.ErrNotInitialized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cause := errors.New(tt.in)
			err := NormalizeError(cause)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.in, "original message MUST be preserved")
		})
	}

	t.Run("unknown errors pass through", func(t *testing.T) {
		cause := errors.New("att: invalid handle")
		assert.Same(t, cause, NormalizeError(cause))
	})

	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, NormalizeError(nil))
	})
}

func TestAdvertisementProperties(t *testing.T) {
	adv := Advertisement{
		LocalName:   "ESP32",
		Address:     "aa:bb",
		RSSI:        -60,
		TxPower:     4,
		Connectable: true,
		Services:    []string{"180f"},
	}

	props := adv.properties()
	assert.Equal(t, "ESP32", props.LocalName)
	assert.Equal(t, -60, *props.RSSI)
	assert.Equal(t, 4, *props.TxPower)
	assert.Equal(t, []string{"180f"}, props.Services)

	props.Services[0] = "ffff"
	assert.Equal(t, "180f", adv.Services[0], "properties MUST not alias the snapshot")

	adv.TxPower = txPowerUnavailable
	assert.Nil(t, adv.properties().TxPower)
}
