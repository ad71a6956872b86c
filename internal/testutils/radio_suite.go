package testutils

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	goble "github.com/srg/blesh/internal/device/go-ble"
	"github.com/srg/blesh/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// MockRadioSuite replaces the go-ble radio with a mock for the duration of each test.
// Everything above the radio (provider, adapter, peripherals, session manager, CLI)
// runs for real against the configured peripherals.
//
// Custom peripherals usage:
//
//	type InspectSuite struct {
//	    testutils.MockRadioSuite
//	}
//
//	func (s *InspectSuite) SetupTest() {
//	    s.WithPeripheral().
//	        WithAddress("AA:BB:CC:DD:EE:FF").WithName("ESP32-UART").
//	        WithService("6e400001-b5a3-f393-e0a9-e50e24dcca9e").
//	        WithCharacteristic("6e400002-b5a3-f393-e0a9-e50e24dcca9e", "write,wnr", "")
//
//	    s.MockRadioSuite.SetupTest() // call parent last to apply the configuration
//	}
//
// Without configured peripherals a single battery peripheral is advertised.
type MockRadioSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	// Radio is the mock installed as goble.RadioFactory for the current test
	Radio *mocks.MockRadio

	// Peripherals are advertised by every scan and can be dialed by address
	Peripherals []*PeripheralBuilder

	// RadioError, when set, makes the radio factory fail
	RadioError error

	originalFactory func() (goble.Radio, error)
}

// SetupSuite runs once before all tests in the suite
func (s *MockRadioSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
	s.originalFactory = goble.RadioFactory

	s.T().Cleanup(func() {
		goble.RadioFactory = s.originalFactory
	})
}

// SetupTest installs the mock radio
func (s *MockRadioSuite) SetupTest() {
	if len(s.Peripherals) == 0 {
		s.Peripherals = append(s.Peripherals, DefaultPeripheral())
	}

	s.Radio = &mocks.MockRadio{}
	s.Radio.On("Scan", mock.Anything, mock.Anything).Return(nil).Maybe()
	for _, p := range s.Peripherals {
		s.Radio.Advertisements = append(s.Radio.Advertisements, p.Advertisement())
		s.Radio.On("Dial", mock.Anything, p.Profile().Address).Return(p.BuildGATTClient(), nil).Maybe()
	}

	radio, radioErr := s.Radio, s.RadioError
	goble.RadioFactory = func() (goble.Radio, error) {
		if radioErr != nil {
			return nil, radioErr
		}
		return radio, nil
	}
}

// TearDownTest restores the real radio factory and forgets configured peripherals
func (s *MockRadioSuite) TearDownTest() {
	goble.RadioFactory = s.originalFactory
	s.Peripherals = nil
	s.RadioError = nil
	s.Radio = nil
}

// WithPeripheral adds a peripheral and returns its builder for fluent configuration.
// Call it from SetupTest before the parent SetupTest.
func (s *MockRadioSuite) WithPeripheral() *PeripheralBuilder {
	p := NewPeripheralBuilder()
	s.Peripherals = append(s.Peripherals, p)
	return p
}

// NewProvider creates a go-ble provider bound to the suite radio with short timings
func (s *MockRadioSuite) NewProvider() *goble.Provider {
	return goble.NewProvider(s.Logger, &goble.ProviderOptions{
		ConnectTimeout: 2 * time.Second,
		ScanStartGrace: 5 * time.Millisecond,
	})
}

// Context returns a context bounded by the suite test timeout
func (s *MockRadioSuite) Context() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	s.T().Cleanup(cancel)
	return ctx
}

// DefaultPeripheral is an ESP32 UART bridge with a read/notify battery level
func DefaultPeripheral() *PeripheralBuilder {
	return NewPeripheralBuilder().FromJSON(`
	{
		"address": "AA:BB:CC:DD:EE:FF",
		"name": "ESP32-Test",
		"rssi": -42,
		"services": [
			{
				"uuid": "180F",
				"characteristics": [
					{ "uuid": "2A19", "properties": "read,notify", "value": "50" }
				]
			},
			{
				"uuid": "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
				"characteristics": [
					{ "uuid": "6e400002-b5a3-f393-e0a9-e50e24dcca9e", "properties": "write,wnr" },
					{ "uuid": "6e400003-b5a3-f393-e0a9-e50e24dcca9e", "properties": "read,notify", "value": "ready" }
				]
			}
		]
	}`)
}
