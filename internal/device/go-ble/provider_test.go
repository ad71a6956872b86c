package goble_test

import (
	"errors"
	"testing"
	"time"

	"github.com/srg/blesh/internal/device"
	goble "github.com/srg/blesh/internal/device/go-ble"
	"github.com/srg/blesh/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type ProviderTestSuite struct {
	testutils.MockRadioSuite
}

func TestProviderTestSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}

func (s *ProviderTestSuite) TestAdapters() {
	s.Run("single cached adapter", func() {
		provider := s.NewProvider()

		first, err := provider.Adapters(s.Context())
		s.Require().NoError(err)
		s.Require().Len(first, 1)

		second, err := provider.Adapters(s.Context())
		s.Require().NoError(err)
		s.Require().Len(second, 1)
		s.Same(first[0], second[0], "the radio MUST be opened once")
	})
}

func (s *ProviderTestSuite) TestNoAdapter() {
	goble.RadioFactory = func() (goble.Radio, error) {
		return nil, errors.New("can't init hci: no such device")
	}

	adapters, err := s.NewProvider().Adapters(s.Context())
	s.NoError(err, "a missing adapter MUST NOT be an error")
	s.Empty(adapters)
}

func (s *ProviderTestSuite) TestRadioFailure() {
	goble.RadioFactory = func() (goble.Radio, error) {
		return nil, errors.New("central manager has invalid state: have=4 want=5: is Bluetooth turned on?")
	}

	_, err := s.NewProvider().Adapters(s.Context())
	s.ErrorIs(err, device.ErrBluetoothOff)
	s.Contains(err.Error(), "failed to create BLE device")
}

type AdapterTestSuite struct {
	testutils.MockRadioSuite

	adapter device.Adapter
}

func TestAdapterTestSuite(t *testing.T) {
	suite.Run(t, new(AdapterTestSuite))
}

func (s *AdapterTestSuite) SetupTest() {
	s.WithPeripheral().WithAddress("11:11:11:11:11:11").WithName("First")
	s.WithPeripheral().WithAddress("22:22:22:22:22:22").WithName("")
	s.WithPeripheral().WithAddress("33:33:33:33:33:33").WithName("Third").WithRSSI(-81)
	s.MockRadioSuite.SetupTest()

	adapters, err := s.NewProvider().Adapters(s.Context())
	s.Require().NoError(err)
	s.Require().Len(adapters, 1)
	s.adapter = adapters[0]
}

func (s *AdapterTestSuite) scan() []device.Peripheral {
	s.Require().NoError(s.adapter.StartScan(s.Context()))
	time.Sleep(20 * time.Millisecond)
	s.Require().NoError(s.adapter.StopScan(s.Context()))

	peripherals, err := s.adapter.Peripherals(s.Context())
	s.Require().NoError(err)
	return peripherals
}

func (s *AdapterTestSuite) TestScanCollectsPeripheralsInDiscoveryOrder() {
	peripherals := s.scan()
	s.Require().Len(peripherals, 3)

	ids := make([]string, len(peripherals))
	for i, p := range peripherals {
		ids[i] = p.ID()
	}
	s.Equal([]string{"11:11:11:11:11:11", "22:22:22:22:22:22", "33:33:33:33:33:33"}, ids)

	props, err := peripherals[2].Properties(s.Context())
	s.Require().NoError(err)
	s.Equal("Third", props.LocalName)
	s.Require().NotNil(props.RSSI)
	s.Equal(-81, *props.RSSI)
	s.Nil(props.TxPower, "TX power 127 means unavailable")
}

func (s *AdapterTestSuite) TestRepeatedScansKeepTheCache() {
	first := s.scan()
	second := s.scan()

	s.Require().Len(second, len(first))
	for i := range first {
		s.Same(first[i], second[i], "a peripheral MUST keep its identity across scans")
	}
}

func (s *AdapterTestSuite) TestStartAndStopAreIdempotent() {
	s.NoError(s.adapter.StopScan(s.Context()), "stop without scan MUST succeed")

	s.Require().NoError(s.adapter.StartScan(s.Context()))
	s.Require().NoError(s.adapter.StartScan(s.Context()), "second start MUST be a no-op")
	s.Require().NoError(s.adapter.StopScan(s.Context()))
	s.NoError(s.adapter.StopScan(s.Context()))

	s.Radio.AssertNumberOfCalls(s.T(), "Scan", 1)
}

func (s *AdapterTestSuite) TestScanRefusedByRadio() {
	s.Radio.ExpectedCalls = nil
	s.Radio.On("Scan", mock.Anything, mock.Anything).Return(errors.New("bluetooth is turned off"))

	// A long grace period makes the immediate failure win the race
	adapter := goble.NewAdapter(s.Radio, s.Logger, &goble.ProviderOptions{ScanStartGrace: time.Second})

	err := adapter.StartScan(s.Context())
	s.ErrorIs(err, device.ErrBluetoothOff)

	// The failed run is cleared, so a stop afterwards has nothing to report
	s.NoError(adapter.StopScan(s.Context()))
}
