package mocks

import (
	"context"

	"github.com/go-ble/ble"
	goble "github.com/srg/blesh/internal/device/go-ble"
	"github.com/stretchr/testify/mock"
)

// MockRadio is a mock of goble.Radio. Scan delivers Advertisements to the handler
// before returning, then blocks until ctx is done unless a Scan error is configured.
type MockRadio struct {
	mock.Mock

	Advertisements []goble.Advertisement
}

func (m *MockRadio) Scan(ctx context.Context, allowDup bool, handler func(goble.Advertisement)) error {
	if err := m.Called(ctx, allowDup).Error(0); err != nil {
		return err
	}
	for _, a := range m.Advertisements {
		handler(a)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *MockRadio) Dial(ctx context.Context, address string) (goble.GATTClient, error) {
	args := m.Called(ctx, address)
	client, _ := args.Get(0).(goble.GATTClient)
	return client, args.Error(1)
}

// MockGATTClient is a mock of goble.GATTClient
type MockGATTClient struct {
	mock.Mock

	DisconnectedCh chan struct{}
}

func (m *MockGATTClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	profile, _ := args.Get(0).(*ble.Profile)
	return profile, args.Error(1)
}

func (m *MockGATTClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	args := m.Called(c)
	if fn, ok := args.Get(0).(func(*ble.Characteristic) []byte); ok {
		return fn(c), args.Error(1)
	}
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockGATTClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	return m.Called(c, value, noRsp).Error(0)
}

func (m *MockGATTClient) CancelConnection() error {
	return m.Called().Error(0)
}

func (m *MockGATTClient) Disconnected() <-chan struct{} {
	if m.DisconnectedCh == nil {
		return nil
	}
	return m.DisconnectedCh
}
