package goble

import (
	"context"

	"github.com/go-ble/ble"
)

// Radio is the part of a go-ble device the adapter drives: scanning and dialing.
// *ble.Device values are adapted to it by bleRadio.
type Radio interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
	Dial(ctx context.Context, address string) (GATTClient, error)
}

// GATTClient is the part of a go-ble client used by a connected peripheral.
type GATTClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	CancelConnection() error
	// Disconnected is closed when the link drops
	Disconnected() <-chan struct{}
}

var _ GATTClient = ble.Client(nil)

// RadioFactory creates the platform radio (can be overridden in tests)
//
//nolint:gochecknoglobals // overridden by test suites
var RadioFactory = func() (Radio, error) {
	dev, err := newDefaultDevice()
	if err != nil {
		return nil, err
	}
	return &bleRadio{dev: dev}, nil
}

// bleRadio wraps ble.Device to implement Radio
type bleRadio struct {
	dev ble.Device
}

// Scan wraps the raw ble.Device.Scan to convert ble.Advertisement to an Advertisement snapshot
func (r *bleRadio) Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error {
	bleHandler := func(adv ble.Advertisement) {
		handler(NewAdvertisement(adv))
	}
	return r.dev.Scan(ctx, allowDup, bleHandler)
}

func (r *bleRadio) Dial(ctx context.Context, address string) (GATTClient, error) {
	client, err := r.dev.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, err
	}
	return client, nil
}
