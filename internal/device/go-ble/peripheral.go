package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/device"
)

// Peripheral implements device.Peripheral for a device seen by an Adapter.
// The identifier is the platform address (a MAC on Linux, a CoreBluetooth UUID on macOS).
type Peripheral struct {
	adapter *Adapter
	address string
	seq     uint64
	logger  *logrus.Entry

	mu      sync.RWMutex
	adv     *Advertisement
	client  GATTClient
	handles map[string]*ble.Characteristic
	chars   []device.CharacteristicDescriptor
}

func newPeripheral(a *Adapter, address string, seq uint64) *Peripheral {
	return &Peripheral{
		adapter: a,
		address: address,
		seq:     seq,
		logger:  a.logger.WithField("address", address),
		handles: make(map[string]*ble.Characteristic),
	}
}

func (p *Peripheral) ID() string      { return p.address }
func (p *Peripheral) Address() string { return p.address }

func (p *Peripheral) update(adv Advertisement) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Scan responses often carry no name; keep the last known one
	if adv.LocalName == "" && p.adv != nil {
		adv.LocalName = p.adv.LocalName
	}
	p.adv = &adv
}

// Properties returns the latest advertised properties, nil if none were received
func (p *Peripheral) Properties(_ context.Context) (*device.PeripheralProperties, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.adv == nil {
		return nil, nil
	}
	return p.adv.properties(), nil
}

// IsConnected checks the live client; a closed Disconnected channel means the link dropped
func (p *Peripheral) IsConnected(_ context.Context) (bool, error) {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()

	if client == nil {
		return false, nil
	}

	select {
	case <-client.Disconnected():
		return false, nil
	default:
		return true, nil
	}
}

// Connect dials the peripheral
func (p *Peripheral) Connect(ctx context.Context) error {
	p.logger.WithField("timeout", p.adapter.connectTimeout).Info("Connecting to BLE device...")

	dialCtx, cancel := context.WithTimeout(ctx, p.adapter.connectTimeout)
	defer cancel()

	client, err := p.adapter.radio.Dial(dialCtx, p.address)
	if err != nil {
		p.logger.WithError(err).Error("Failed to dial BLE device")
		return fmt.Errorf("failed to connect to device with address %q: %w", p.address, NormalizeError(err))
	}

	p.mu.Lock()
	previous := p.client
	p.client = client
	p.mu.Unlock()

	if previous != nil {
		if err := previous.CancelConnection(); err != nil {
			p.logger.WithError(err).Warn("Failed to cancel stale connection")
		}
	}

	p.logger.Info("BLE device connected")
	return nil
}

// Disconnect cancels the connection and forgets discovered handles.
// On failure the client is kept so the disconnect can be retried.
func (p *Peripheral) Disconnect(ctx context.Context) error {
	p.mu.RLock()
	client := p.client
	p.mu.RUnlock()

	if client == nil {
		p.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	p.logger.Info("Disconnecting BLE device...")
	_, err := callWithContext(ctx, func() (struct{}, error) {
		return struct{}{}, client.CancelConnection()
	})
	if err != nil {
		p.logger.WithError(err).Warn("BLE device disconnected with errors")
		return NormalizeError(err)
	}

	p.mu.Lock()
	if p.client == client {
		p.client = nil
		p.handles = make(map[string]*ble.Characteristic)
		p.chars = nil
	}
	p.mu.Unlock()

	p.logger.Info("BLE device disconnected successfully")
	return nil
}

// DiscoverServices runs a forced profile discovery and replaces the characteristic list
func (p *Peripheral) DiscoverServices(ctx context.Context) error {
	client, err := p.liveClient()
	if err != nil {
		return err
	}

	p.logger.Debug("Discovering services and characteristics...")
	profile, err := callWithContext(ctx, func() (*ble.Profile, error) {
		return client.DiscoverProfile(true)
	})
	if err != nil {
		p.logger.WithError(err).Error("Failed to discover profile")
		return fmt.Errorf("failed to discover profile: %w", NormalizeError(err))
	}

	handles := make(map[string]*ble.Characteristic)
	chars := make([]device.CharacteristicDescriptor, 0)
	for _, svc := range profile.Services {
		svcUUID := device.NormalizeUUID(svc.UUID.String())
		for _, c := range svc.Characteristics {
			charUUID := device.NormalizeUUID(c.UUID.String())
			if _, dup := handles[charUUID]; dup {
				continue
			}
			handles[charUUID] = c
			chars = append(chars, device.CharacteristicDescriptor{
				UUID:       charUUID,
				Service:    svcUUID,
				Properties: NewProperties(c.Property),
			})
		}
	}

	p.mu.Lock()
	p.handles = handles
	p.chars = chars
	p.mu.Unlock()

	p.logger.WithFields(logrus.Fields{
		"services":        len(profile.Services),
		"characteristics": len(chars),
	}).Debug("Profile discovered successfully")
	return nil
}

// Characteristics returns a copy of the last discovered characteristic list
func (p *Peripheral) Characteristics() []device.CharacteristicDescriptor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]device.CharacteristicDescriptor(nil), p.chars...)
}

func (p *Peripheral) Read(ctx context.Context, char device.CharacteristicDescriptor) ([]byte, error) {
	client, handle, err := p.target(char)
	if err != nil {
		return nil, err
	}

	data, err := callWithContext(ctx, func() ([]byte, error) {
		return client.ReadCharacteristic(handle)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read characteristic %s: %w", char.UUID, NormalizeError(err))
	}
	return data, nil
}

func (p *Peripheral) Write(ctx context.Context, char device.CharacteristicDescriptor, data []byte, mode device.WriteMode) error {
	client, handle, err := p.target(char)
	if err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"char_uuid": char.UUID,
		"bytes":     len(data),
		"mode":      mode,
	}).Debug("Writing characteristic")

	_, err = callWithContext(ctx, func() (struct{}, error) {
		return struct{}{}, client.WriteCharacteristic(handle, data, mode == device.WriteWithoutResponse)
	})
	if err != nil {
		return fmt.Errorf("failed to write characteristic %s: %w", char.UUID, NormalizeError(err))
	}
	return nil
}

func (p *Peripheral) liveClient() (GATTClient, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.client == nil {
		return nil, device.ErrNotConnected
	}
	return p.client, nil
}

func (p *Peripheral) target(char device.CharacteristicDescriptor) (GATTClient, *ble.Characteristic, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.client == nil {
		return nil, nil, device.ErrNotConnected
	}
	handle, ok := p.handles[device.NormalizeUUID(char.UUID)]
	if !ok {
		return nil, nil, fmt.Errorf("characteristic %s not discovered", char.UUID)
	}
	return p.client, handle, nil
}

// callWithContext runs a blocking go-ble call and stops waiting when ctx ends.
// go-ble calls are not cancellable; an abandoned call finishes in the background.
func callWithContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	resultCh := make(chan result, 1)

	go func() {
		v, err := fn()
		resultCh <- result{val: v, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
