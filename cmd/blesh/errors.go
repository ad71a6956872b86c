package main

import (
	"errors"

	"github.com/srg/blesh/internal/device"
	"github.com/srg/blesh/internal/session"
)

// Command-level errors
var (
	// ErrInvalidHex is returned by write --hex for data that is not a hex string
	ErrInvalidHex = errors.New("invalid hex data")
)

// kindHints suggest a next step for failures users can act on
var kindHints = map[session.ErrorKind]string{
	session.KindNoAdapterFound:           "is a Bluetooth adapter attached and enabled?",
	session.KindAdapterInit:              "check that Bluetooth is enabled and this process may use it",
	session.KindDeviceNotFound:           "run 'blesh scan' to list nearby devices",
	session.KindCharacteristicNotFound:   "run 'blesh inspect <device-id>' to list characteristics",
	session.KindNoWritableCharacteristic: "the device exposes no writable characteristic",
	session.KindNoReadableCharacteristic: "the device exposes no readable characteristic",
	session.KindInvalidUUID:              "use a 16-bit (2A19) or 128-bit UUID",
}

// FormatUserError turns an error into a one-line message for the terminal
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, device.ErrBluetoothOff) {
		return "Bluetooth is turned off, turn it on and retry"
	}

	msg := err.Error()
	if kind := session.KindOf(err); kind != "" {
		if hint, ok := kindHints[kind]; ok {
			return msg + " (" + hint + ")"
		}
	}
	return msg
}
