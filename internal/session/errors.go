package session

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed session operation
type ErrorKind string

const (
	KindAdapterInit              ErrorKind = "AdapterInitError"
	KindNoAdapterFound           ErrorKind = "NoAdapterFound"
	KindNotInitialized           ErrorKind = "NotInitialized"
	KindScanStart                ErrorKind = "ScanStartError"
	KindScanStop                 ErrorKind = "ScanStopError"
	KindEnumeration              ErrorKind = "EnumerationError"
	KindProperties               ErrorKind = "PropertiesError"
	KindDeviceNotFound           ErrorKind = "DeviceNotFound"
	KindConnect                  ErrorKind = "ConnectError"
	KindServiceDiscovery         ErrorKind = "ServiceDiscoveryError"
	KindDisconnect               ErrorKind = "DisconnectError"
	KindConnectivityCheck        ErrorKind = "ConnectivityCheckError"
	KindInvalidUUID              ErrorKind = "InvalidUuid"
	KindCharacteristicNotFound   ErrorKind = "CharacteristicNotFound"
	KindNoWritableCharacteristic ErrorKind = "NoWritableCharacteristic"
	KindNoReadableCharacteristic ErrorKind = "NoReadableCharacteristic"
	KindNotConnected             ErrorKind = "NotConnected"
	KindWrite                    ErrorKind = "WriteError"
	KindRead                     ErrorKind = "ReadError"
	KindLockAcquisition          ErrorKind = "LockAcquisitionFailure"
)

var kindMessages = map[ErrorKind]string{
	KindAdapterInit:              "failed to initialize bluetooth",
	KindNoAdapterFound:           "no bluetooth adapter found",
	KindNotInitialized:           "bluetooth not initialized, call init first",
	KindScanStart:                "failed to start scan",
	KindScanStop:                 "failed to stop scan",
	KindEnumeration:              "failed to list devices",
	KindProperties:               "failed to get device properties",
	KindDeviceNotFound:           "device not found",
	KindConnect:                  "failed to connect",
	KindServiceDiscovery:         "failed to discover services",
	KindDisconnect:               "failed to disconnect",
	KindConnectivityCheck:        "failed to check connection",
	KindInvalidUUID:              "invalid UUID",
	KindCharacteristicNotFound:   "characteristic not found",
	KindNoWritableCharacteristic: "no writable characteristic found",
	KindNoReadableCharacteristic: "no readable characteristic found",
	KindNotConnected:             "no active connection",
	KindWrite:                    "failed to write data",
	KindRead:                     "failed to read data",
	KindLockAcquisition:          "failed to acquire lock",
}

// Error is the error returned by every Manager operation
type Error struct {
	Kind   ErrorKind
	Op     string // operation name, e.g. "connect"
	Detail string // optional subject, e.g. the device id or UUID
	Err    error  // underlying platform error, if any
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := kindMessages[e.Kind]
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to compare Error values by Kind
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinels for errors.Is
var (
	ErrAdapterInit              = &Error{Kind: KindAdapterInit}
	ErrNoAdapterFound           = &Error{Kind: KindNoAdapterFound}
	ErrNotInitialized           = &Error{Kind: KindNotInitialized}
	ErrScanStart                = &Error{Kind: KindScanStart}
	ErrScanStop                 = &Error{Kind: KindScanStop}
	ErrEnumeration              = &Error{Kind: KindEnumeration}
	ErrProperties               = &Error{Kind: KindProperties}
	ErrDeviceNotFound           = &Error{Kind: KindDeviceNotFound}
	ErrConnect                  = &Error{Kind: KindConnect}
	ErrServiceDiscovery         = &Error{Kind: KindServiceDiscovery}
	ErrDisconnect               = &Error{Kind: KindDisconnect}
	ErrConnectivityCheck        = &Error{Kind: KindConnectivityCheck}
	ErrInvalidUUID              = &Error{Kind: KindInvalidUUID}
	ErrCharacteristicNotFound   = &Error{Kind: KindCharacteristicNotFound}
	ErrNoWritableCharacteristic = &Error{Kind: KindNoWritableCharacteristic}
	ErrNoReadableCharacteristic = &Error{Kind: KindNoReadableCharacteristic}
	ErrNotConnected             = &Error{Kind: KindNotConnected}
	ErrWrite                    = &Error{Kind: KindWrite}
	ErrRead                     = &Error{Kind: KindRead}
	ErrLockAcquisition          = &Error{Kind: KindLockAcquisition}
)

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the ErrorKind carried by err, or "" when err is not a session error
func KindOf(err error) ErrorKind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return ""
}
