// Package mocks holds testify mocks of the device capability and the go-ble radio seams.
package mocks

import (
	"context"

	"github.com/srg/blesh/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockProvider is a mock of device.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Adapters(ctx context.Context) ([]device.Adapter, error) {
	args := m.Called(ctx)
	adapters, _ := args.Get(0).([]device.Adapter)
	return adapters, args.Error(1)
}

// MockAdapter is a mock of device.Adapter
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) StartScan(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAdapter) StopScan(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAdapter) Peripherals(ctx context.Context) ([]device.Peripheral, error) {
	args := m.Called(ctx)
	peripherals, _ := args.Get(0).([]device.Peripheral)
	return peripherals, args.Error(1)
}

// MockPeripheral is a mock of device.Peripheral
type MockPeripheral struct {
	mock.Mock
}

func (m *MockPeripheral) ID() string {
	return m.Called().String(0)
}

func (m *MockPeripheral) Address() string {
	return m.Called().String(0)
}

func (m *MockPeripheral) Properties(ctx context.Context) (*device.PeripheralProperties, error) {
	args := m.Called(ctx)
	props, _ := args.Get(0).(*device.PeripheralProperties)
	return props, args.Error(1)
}

func (m *MockPeripheral) IsConnected(ctx context.Context) (bool, error) {
	args := m.Called(ctx)
	if fn, ok := args.Get(0).(func() bool); ok {
		return fn(), args.Error(1)
	}
	return args.Bool(0), args.Error(1)
}

func (m *MockPeripheral) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPeripheral) Disconnect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPeripheral) DiscoverServices(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPeripheral) Characteristics() []device.CharacteristicDescriptor {
	chars, _ := m.Called().Get(0).([]device.CharacteristicDescriptor)
	return chars
}

func (m *MockPeripheral) Read(ctx context.Context, char device.CharacteristicDescriptor) ([]byte, error) {
	args := m.Called(ctx, char)
	if fn, ok := args.Get(0).(func(device.CharacteristicDescriptor) []byte); ok {
		return fn(char), args.Error(1)
	}
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockPeripheral) Write(ctx context.Context, char device.CharacteristicDescriptor, data []byte, mode device.WriteMode) error {
	return m.Called(ctx, char, data, mode).Error(0)
}
