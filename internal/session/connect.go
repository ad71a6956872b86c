package session

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/device"
)

// Connect connects to the peripheral with the given platform id, discovers its
// characteristics and makes it the active session.
func (m *Manager) Connect(ctx context.Context, deviceID string) (string, error) {
	const op = "connect"

	adapter, err := m.currentAdapter(op)
	if err != nil {
		return "", err
	}

	logger := m.logger.WithFields(logrus.Fields{"op": op, "device": deviceID})

	m.refreshPeripherals(ctx, adapter, logger)

	peripherals, err := adapter.Peripherals(ctx)
	if err != nil {
		return "", newError(KindEnumeration, op, err)
	}

	var target device.Peripheral
	for _, p := range peripherals {
		if p.ID() == deviceID {
			target = p
			break
		}
	}
	if target == nil {
		return "", &Error{Kind: KindDeviceNotFound, Op: op, Detail: deviceID}
	}

	connected, err := target.IsConnected(ctx)
	if err != nil {
		return "", &Error{Kind: KindConnectivityCheck, Op: op, Detail: deviceID, Err: err}
	}
	if !connected {
		logger.Info("Connecting...")
		if err := target.Connect(ctx); err != nil {
			return "", &Error{Kind: KindConnect, Op: op, Detail: deviceID, Err: err}
		}
	} else {
		logger.Debug("Peripheral already connected at the platform level")
	}

	if err := target.DiscoverServices(ctx); err != nil {
		return "", &Error{Kind: KindServiceDiscovery, Op: op, Detail: deviceID, Err: err}
	}
	chars := dedupeCharacteristics(target.Characteristics())

	props, err := target.Properties(ctx)
	if err != nil {
		return "", &Error{Kind: KindProperties, Op: op, Detail: deviceID, Err: err}
	}
	name := UnknownName
	if props != nil && props.LocalName != "" {
		name = props.LocalName
	}

	previous, err := m.commitConnection(op, &connection{
		peripheral:      target,
		name:            name,
		characteristics: chars,
	})
	if err != nil {
		return "", err
	}
	if previous != nil && previous.peripheral.ID() != target.ID() {
		logger.WithField("previous", previous.peripheral.ID()).Warn("Replaced an active session without disconnecting it")
	}

	logger.WithFields(logrus.Fields{
		"name":            name,
		"characteristics": len(chars),
	}).Info("Connected")
	return "Connected to " + name, nil
}

// refreshPeripherals runs a short scan so the adapter knows about devices that
// appeared since the last scan. Every failure here is ignored.
func (m *Manager) refreshPeripherals(ctx context.Context, adapter device.Adapter, logger *logrus.Entry) {
	if err := adapter.StartScan(ctx); err != nil {
		logger.WithError(err).Debug("Pre-connect rescan failed to start, ignoring")
		return
	}
	m.sleep(m.opts.PreConnectRescan)
	if err := adapter.StopScan(ctx); err != nil {
		logger.WithError(err).Debug("Pre-connect rescan failed to stop, ignoring")
	}
}

// Disconnect tears down the active session. Calling it without a session succeeds.
func (m *Manager) Disconnect(ctx context.Context) (string, error) {
	const op = "disconnect"

	if _, err := m.currentAdapter(op); err != nil {
		return "", err
	}
	conn, err := m.currentConnection(op)
	if err != nil {
		return "", err
	}

	if conn != nil {
		logger := m.logger.WithFields(logrus.Fields{"op": op, "device": conn.peripheral.ID()})
		if err := conn.peripheral.Disconnect(ctx); err != nil {
			// State is kept: the peripheral may still be connected.
			return "", &Error{Kind: KindDisconnect, Op: op, Detail: conn.peripheral.ID(), Err: err}
		}
		m.sleep(m.opts.PostDisconnectSettle)
		logger.Info("Disconnected")
	}

	if _, err := m.commitConnection(op, nil); err != nil {
		return "", err
	}
	return "Disconnected", nil
}

// IsConnected asks the platform whether the session peripheral is still connected.
// Without a session it answers false without touching the hardware.
func (m *Manager) IsConnected(ctx context.Context) (bool, error) {
	const op = "isConnected"

	if _, err := m.currentAdapter(op); err != nil {
		return false, err
	}
	conn, err := m.currentConnection(op)
	if err != nil {
		return false, err
	}
	if conn == nil {
		return false, nil
	}

	connected, err := conn.peripheral.IsConnected(ctx)
	if err != nil {
		return false, &Error{Kind: KindConnectivityCheck, Op: op, Detail: conn.peripheral.ID(), Err: err}
	}
	return connected, nil
}

// dedupeCharacteristics keeps the first occurrence of every UUID, preserving
// service order and then characteristic order.
func dedupeCharacteristics(chars []device.CharacteristicDescriptor) []device.CharacteristicDescriptor {
	seen := make(map[string]struct{}, len(chars))
	out := make([]device.CharacteristicDescriptor, 0, len(chars))
	for _, c := range chars {
		key := device.NormalizeUUID(c.UUID)
		if key == "" {
			key = c.UUID
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
