package goble

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/device"
	"github.com/srg/blesh/internal/groutine"
)

// scanRun tracks one background scan loop
type scanRun struct {
	cancel context.CancelFunc
	done   <-chan struct{}
	err    error // written by the scan goroutine before done is closed
}

// Adapter implements device.Adapter on top of a Radio.
//
// go-ble has no "start scan" / "stop scan" pair: Scan blocks until its context ends.
// StartScan runs it on a named goroutine and StopScan cancels and joins it. Every
// advertisement lands in a concurrent peripheral cache keyed by address.
type Adapter struct {
	radio          Radio
	logger         *logrus.Logger
	connectTimeout time.Duration
	scanStartGrace time.Duration

	peripherals *hashmap.Map[string, *Peripheral]
	seq         atomic.Uint64

	scanMu sync.Mutex
	scan   *scanRun
}

// NewAdapter wraps a radio
func NewAdapter(radio Radio, logger *logrus.Logger, opts *ProviderOptions) *Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	a := &Adapter{
		radio:          radio,
		logger:         logger,
		connectTimeout: DefaultConnectTimeout,
		scanStartGrace: DefaultScanStartGrace,
		peripherals:    hashmap.New[string, *Peripheral](),
	}
	if opts != nil {
		if opts.ConnectTimeout > 0 {
			a.connectTimeout = opts.ConnectTimeout
		}
		if opts.ScanStartGrace > 0 {
			a.scanStartGrace = opts.ScanStartGrace
		}
	}
	return a
}

// StartScan starts the background scan loop. A scan that is already running is left alone.
func (a *Adapter) StartScan(ctx context.Context) error {
	a.scanMu.Lock()
	if a.scan != nil {
		a.scanMu.Unlock()
		a.logger.Debug("Scan already in progress")
		return nil
	}

	// The scan outlives this call, so it is not tied to the caller's context
	scanCtx, cancel := context.WithCancel(context.Background())
	run := &scanRun{cancel: cancel}
	run.done = groutine.Go(scanCtx, "ble-scan", func(ctx context.Context) {
		run.err = a.radio.Scan(ctx, true, a.handleAdvertisement)
	})
	a.scan = run
	a.scanMu.Unlock()

	a.logger.Info("Starting BLE scan...")

	timer := time.NewTimer(a.scanStartGrace)
	defer timer.Stop()

	select {
	case <-run.done:
		// Scan ended on its own right away: the radio refused it
		a.clearScan(run)
		cancel()
		if err := scanError(run.err); err != nil {
			a.logger.WithError(err).Error("Scan failed to start")
			return err
		}
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		a.clearScan(run)
		cancel()
		<-run.done
		return ctx.Err()
	}
}

// StopScan cancels the running scan loop and waits for it to exit.
// An asynchronous scan failure that happened after StartScan returned is reported here.
func (a *Adapter) StopScan(ctx context.Context) error {
	a.scanMu.Lock()
	run := a.scan
	a.scan = nil
	a.scanMu.Unlock()

	if run == nil {
		a.logger.Debug("StopScan called but no scan in progress")
		return nil
	}

	run.cancel()
	select {
	case <-run.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := scanError(run.err); err != nil {
		a.logger.WithError(err).Warn("Scan ended with error")
		return err
	}

	a.logger.WithField("device_count", a.peripherals.Len()).Info("BLE scan stopped")
	return nil
}

// Peripherals returns a snapshot of every peripheral seen, in discovery order
func (a *Adapter) Peripherals(_ context.Context) ([]device.Peripheral, error) {
	found := make([]*Peripheral, 0, a.peripherals.Len())
	a.peripherals.Range(func(_ string, p *Peripheral) bool {
		found = append(found, p)
		return true
	})
	sort.Slice(found, func(i, j int) bool {
		return found[i].seq < found[j].seq
	})

	result := make([]device.Peripheral, len(found))
	for i, p := range found {
		result[i] = p
	}
	return result, nil
}

// handleAdvertisement updates an existing or adds a new peripheral
func (a *Adapter) handleAdvertisement(adv Advertisement) {
	if adv.Address == "" {
		return
	}

	// Insert rather than GetOrInsert: entries added by GetOrInsert are not visited by Range
	p, existing := a.peripherals.Get(adv.Address)
	if !existing {
		np := newPeripheral(a, adv.Address, a.seq.Add(1))
		if a.peripherals.Insert(adv.Address, np) {
			p = np
		} else {
			p, _ = a.peripherals.Get(adv.Address)
			existing = true
		}
	}
	p.update(adv)

	if !existing {
		a.logger.WithFields(logrus.Fields{
			"device":  adv.LocalName,
			"address": adv.Address,
			"rssi":    adv.RSSI,
		}).Debug("Discovered new device")
	}
}

func (a *Adapter) clearScan(run *scanRun) {
	a.scanMu.Lock()
	if a.scan == run {
		a.scan = nil
	}
	a.scanMu.Unlock()
}

// scanError drops the errors a cancelled go-ble scan always returns
func scanError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return NormalizeError(err)
}
