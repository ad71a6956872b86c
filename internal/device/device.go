package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
)

// ConnectionError represents any connection-related problem reported by the platform
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
)

// Platform errors
var (
	ErrBluetoothOff = errors.New("bluetooth is turned off")
	ErrNoAdapter    = errors.New("no bluetooth adapter available")
	ErrUnsupported  = errors.New("unsupported platform")
	ErrInvalidUUID  = errors.New("invalid UUID")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// ContainsIgnoreCase checks substring case-insensitively
func ContainsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// DeviceDescriptor is the summary of a discovered peripheral returned by a scan.
// It is an immutable snapshot, produced fresh on every scan.
//
//nolint:revive // DeviceDescriptor name is intentional for clarity when used as a device.DeviceDescriptor
type DeviceDescriptor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	RSSI    *int   `json:"rssi"`
}

// PeripheralProperties is what the platform learned about a peripheral from its advertisements.
type PeripheralProperties struct {
	LocalName   string
	Address     string
	RSSI        *int
	TxPower     *int
	Connectable bool
	Services    []string
}

// CharacteristicDescriptor identifies a discovered GATT characteristic and its capabilities.
type CharacteristicDescriptor struct {
	UUID       string     // normalized, see NormalizeUUID
	Service    string     // normalized UUID of the owning service
	Properties Properties // capability flags
}

// WriteMode selects whether a characteristic write waits for the peer's acknowledgement.
type WriteMode int

const (
	WriteWithResponse WriteMode = iota
	WriteWithoutResponse
)

func (m WriteMode) String() string {
	if m == WriteWithoutResponse {
		return "without-response"
	}
	return "with-response"
}

// Provider enumerates the BLE adapters available to the process.
type Provider interface {
	Adapters(ctx context.Context) ([]Adapter, error)
}

// Adapter is one local BLE radio. Implementations must be safe for concurrent use.
type Adapter interface {
	// StartScan starts an unfiltered scan. Starting while a scan is running is not an error.
	StartScan(ctx context.Context) error
	// StopScan stops the running scan. Stopping when no scan runs is not an error.
	StopScan(ctx context.Context) error
	// Peripherals returns every peripheral observed so far, in discovery order.
	Peripherals(ctx context.Context) ([]Peripheral, error)
}

// Peripheral is a remote BLE device known to an adapter. Implementations must be
// safe for concurrent use; handles are shared by reference.
type Peripheral interface {
	ID() string
	Address() string

	// Properties returns the advertised properties, or nil when nothing was advertised.
	Properties(ctx context.Context) (*PeripheralProperties, error)

	IsConnected(ctx context.Context) (bool, error)
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// DiscoverServices (re)discovers the GATT profile. Characteristics reflects
	// the last successful discovery.
	DiscoverServices(ctx context.Context) error
	Characteristics() []CharacteristicDescriptor

	Read(ctx context.Context, char CharacteristicDescriptor) ([]byte, error)
	Write(ctx context.Context, char CharacteristicDescriptor, data []byte, mode WriteMode) error
}
