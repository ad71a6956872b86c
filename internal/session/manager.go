package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/device"
)

const (
	// DefaultPreScanSettle lets the radio quiesce after stopping a previous scan
	DefaultPreScanSettle = 100 * time.Millisecond

	// DefaultPreConnectRescan is the quick rescan window used to refresh the
	// adapter's peripheral cache before connecting
	DefaultPreConnectRescan = 500 * time.Millisecond

	// DefaultPostDisconnectSettle gives the remote device time to resume advertising
	DefaultPostDisconnectSettle = 1 * time.Second

	// UnknownName is reported when a device advertises no local name
	UnknownName = "Unknown"
)

// DefaultNamePatterns are name substrings that are always accepted by the scan filter
var DefaultNamePatterns = []string{"esp32", "esp", "myo"}

// Options tunes the empirical settling delays and the scan name filter
type Options struct {
	PreScanSettle        time.Duration
	PreConnectRescan     time.Duration
	PostDisconnectSettle time.Duration
	NamePatterns         []string
}

// DefaultOptions returns the delays observed to work on common desktop BLE stacks
func DefaultOptions() *Options {
	return &Options{
		PreScanSettle:        DefaultPreScanSettle,
		PreConnectRescan:     DefaultPreConnectRescan,
		PostDisconnectSettle: DefaultPostDisconnectSettle,
		NamePatterns:         append([]string(nil), DefaultNamePatterns...),
	}
}

// connection is the Connected variant of the session state; nil means Disconnected.
// A committed connection is never mutated, it is only replaced or dropped as a whole.
type connection struct {
	peripheral      device.Peripheral
	name            string
	characteristics []device.CharacteristicDescriptor
}

// Status is a snapshot of the cached session state
type Status struct {
	Initialized     bool                     `json:"initialized"`
	Connected       bool                     `json:"connected"`
	Device          *device.DeviceDescriptor `json:"device"`
	Characteristics int                      `json:"characteristics"`
}

// Manager manages a single BLE session. It is safe for concurrent use.
type Manager struct {
	provider device.Provider
	logger   *logrus.Logger
	opts     Options
	sleep    func(time.Duration)

	adapterGuard guard
	adapter      device.Adapter

	sessionGuard guard
	conn         *connection
}

// NewManager creates a manager on top of a platform provider. A nil opts uses DefaultOptions.
func NewManager(provider device.Provider, opts *Options, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	return &Manager{
		provider:     provider,
		logger:       logger,
		opts:         *opts,
		sleep:        time.Sleep,
		adapterGuard: guard{name: "adapter"},
		sessionGuard: guard{name: "session"},
	}
}

// Init resolves the first adapter offered by the provider and stores it, replacing
// any previous adapter. Safe to call repeatedly.
func (m *Manager) Init(ctx context.Context) (string, error) {
	const op = "init"

	adapters, err := m.provider.Adapters(ctx)
	if err != nil {
		m.logger.WithError(err).Error("Failed to enumerate adapters")
		return "", newError(KindAdapterInit, op, err)
	}
	if len(adapters) == 0 {
		m.logger.Warn("No BLE adapter found")
		return "", newError(KindNoAdapterFound, op, nil)
	}
	if len(adapters) > 1 {
		m.logger.WithField("adapters", len(adapters)).Debug("Multiple adapters found, using the first one")
	}

	adapter := adapters[0]
	if err := m.adapterGuard.do(op, func() error {
		m.adapter = adapter
		return nil
	}); err != nil {
		return "", err
	}

	m.logger.Info("Bluetooth initialized")
	return "Bluetooth initialized successfully", nil
}

// Status reports the cached state without touching the hardware
func (m *Manager) Status() (Status, error) {
	const op = "status"
	var st Status

	if err := m.adapterGuard.do(op, func() error {
		st.Initialized = m.adapter != nil
		return nil
	}); err != nil {
		return Status{}, err
	}

	conn, err := m.currentConnection(op)
	if err != nil {
		return Status{}, err
	}
	if conn != nil {
		st.Connected = true
		st.Characteristics = len(conn.characteristics)
		st.Device = &device.DeviceDescriptor{
			ID:      conn.peripheral.ID(),
			Name:    conn.name,
			Address: conn.peripheral.Address(),
		}
	}
	return st, nil
}

// currentAdapter clones the adapter handle out of the lock
func (m *Manager) currentAdapter(op string) (device.Adapter, error) {
	var adapter device.Adapter
	if err := m.adapterGuard.do(op, func() error {
		adapter = m.adapter
		return nil
	}); err != nil {
		return nil, err
	}
	if adapter == nil {
		return nil, newError(KindNotInitialized, op, nil)
	}
	return adapter, nil
}

// currentConnection clones the connection out of the lock; nil when disconnected
func (m *Manager) currentConnection(op string) (*connection, error) {
	var conn *connection
	if err := m.sessionGuard.do(op, func() error {
		conn = m.conn
		return nil
	}); err != nil {
		return nil, err
	}
	return conn, nil
}

// commitConnection swaps the whole connection state in one critical section
func (m *Manager) commitConnection(op string, conn *connection) (previous *connection, err error) {
	err = m.sessionGuard.do(op, func() error {
		previous = m.conn
		m.conn = conn
		return nil
	})
	return previous, err
}
