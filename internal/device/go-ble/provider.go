package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/device"
)

const (
	// DefaultConnectTimeout bounds a single dial attempt
	DefaultConnectTimeout = 30 * time.Second

	// DefaultScanStartGrace is how long StartScan waits for an immediate scan failure
	// (e.g. Bluetooth turned off) before reporting success.
	DefaultScanStartGrace = 50 * time.Millisecond
)

// ProviderOptions configures adapters created by a Provider
type ProviderOptions struct {
	ConnectTimeout time.Duration
	ScanStartGrace time.Duration
}

// Provider exposes the platform's default go-ble device as a single adapter.
//
// go-ble opens the HCI socket / CoreBluetooth central exclusively, so the radio is
// created once and every later enumeration re-resolves to the same adapter.
type Provider struct {
	logger *logrus.Logger
	opts   ProviderOptions

	mu      sync.Mutex
	adapter *Adapter
}

// NewProvider creates a go-ble backed device.Provider
func NewProvider(logger *logrus.Logger, opts *ProviderOptions) *Provider {
	if logger == nil {
		logger = logrus.New()
	}

	o := ProviderOptions{
		ConnectTimeout: DefaultConnectTimeout,
		ScanStartGrace: DefaultScanStartGrace,
	}
	if opts != nil {
		if opts.ConnectTimeout > 0 {
			o.ConnectTimeout = opts.ConnectTimeout
		}
		if opts.ScanStartGrace > 0 {
			o.ScanStartGrace = opts.ScanStartGrace
		}
	}

	return &Provider{logger: logger, opts: o}
}

// Adapters returns the default adapter, or an empty list when the host has none.
func (p *Provider) Adapters(_ context.Context) ([]device.Adapter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.adapter != nil {
		return []device.Adapter{p.adapter}, nil
	}

	p.logger.Debug("Creating BLE radio...")
	radio, err := RadioFactory()
	if err != nil {
		err = NormalizeError(err)
		if errors.Is(err, device.ErrNoAdapter) {
			p.logger.WithError(err).Info("No BLE adapter present")
			return nil, nil
		}
		p.logger.WithError(err).Error("Failed to create BLE radio")
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}

	p.adapter = NewAdapter(radio, p.logger, &p.opts)
	p.logger.Info("BLE adapter ready")
	return []device.Adapter{p.adapter}, nil
}
