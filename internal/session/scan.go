package session

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/device"
)

// Scan runs a timed discovery and returns the devices that pass the name filter.
// Concurrent scans are not serialized against each other; each one stops any scan
// in progress, settles, and runs its own dwell.
func (m *Manager) Scan(ctx context.Context, timeout time.Duration) ([]device.DeviceDescriptor, error) {
	const op = "scan"

	adapter, err := m.currentAdapter(op)
	if err != nil {
		return nil, err
	}

	logger := m.logger.WithFields(logrus.Fields{"op": op, "timeout": timeout})

	// A previous scan may still be running; failing to stop it is not an error.
	if err := adapter.StopScan(ctx); err != nil {
		logger.WithError(err).Debug("Stopping previous scan failed, ignoring")
	}
	m.sleep(m.opts.PreScanSettle)

	logger.Info("Starting scan...")
	if err := adapter.StartScan(ctx); err != nil {
		return nil, newError(KindScanStart, op, err)
	}

	m.sleep(timeout)

	if err := adapter.StopScan(ctx); err != nil {
		return nil, newError(KindScanStop, op, err)
	}

	peripherals, err := adapter.Peripherals(ctx)
	if err != nil {
		return nil, newError(KindEnumeration, op, err)
	}

	devices := make([]device.DeviceDescriptor, 0, len(peripherals))
	for _, p := range peripherals {
		props, err := p.Properties(ctx)
		if err != nil {
			return nil, &Error{Kind: KindProperties, Op: op, Detail: p.ID(), Err: err}
		}
		if props == nil {
			continue
		}
		if !m.acceptName(props.LocalName) {
			logger.WithFields(logrus.Fields{"id": p.ID(), "name": props.LocalName}).Debug("Filtered out")
			continue
		}

		devices = append(devices, device.DeviceDescriptor{
			ID:      p.ID(),
			Name:    props.LocalName,
			Address: props.Address,
			RSSI:    props.RSSI,
		})
	}

	logger.WithField("found", len(devices)).Info("Scan finished")
	return devices, nil
}

// acceptName keeps devices with a real advertised name or a name matching one of
// the configured patterns.
func (m *Manager) acceptName(name string) bool {
	for _, pattern := range m.opts.NamePatterns {
		if pattern != "" && device.ContainsIgnoreCase(name, pattern) {
			return true
		}
	}
	return strings.TrimSpace(name) != "" && name != UnknownName
}
