package goble_test

import (
	"errors"
	"testing"

	"github.com/srg/blesh/internal/device"
	"github.com/srg/blesh/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type PeripheralTestSuite struct {
	testutils.MockRadioSuite

	peripheral device.Peripheral
}

func TestPeripheralTestSuite(t *testing.T) {
	suite.Run(t, new(PeripheralTestSuite))
}

func (s *PeripheralTestSuite) SetupTest() {
	s.MockRadioSuite.SetupTest()
	s.peripheral = s.discover("AA:BB:CC:DD:EE:FF")
}

func (s *PeripheralTestSuite) discover(address string) device.Peripheral {
	adapters, err := s.NewProvider().Adapters(s.Context())
	s.Require().NoError(err)
	adapter := adapters[0]

	s.Require().NoError(adapter.StartScan(s.Context()))
	s.Require().NoError(adapter.StopScan(s.Context()))

	peripherals, err := adapter.Peripherals(s.Context())
	s.Require().NoError(err)
	for _, p := range peripherals {
		if p.ID() == address {
			return p
		}
	}
	s.FailNow("peripheral not discovered", address)
	return nil
}

func (s *PeripheralTestSuite) connect() {
	s.Require().NoError(s.peripheral.Connect(s.Context()))
	s.Require().NoError(s.peripheral.DiscoverServices(s.Context()))
}

func (s *PeripheralTestSuite) TestConnectAndDiscover() {
	connected, err := s.peripheral.IsConnected(s.Context())
	s.Require().NoError(err)
	s.False(connected, "MUST start disconnected")

	s.connect()

	connected, err = s.peripheral.IsConnected(s.Context())
	s.Require().NoError(err)
	s.True(connected)

	s.Equal([]device.CharacteristicDescriptor{
		{UUID: "2a19", Service: "180f", Properties: device.PropRead | device.PropNotify},
		{UUID: "6e400002b5a3f393e0a9e50e24dcca9e", Service: "6e400001b5a3f393e0a9e50e24dcca9e", Properties: device.PropWrite | device.PropWriteWithoutResponse},
		{UUID: "6e400003b5a3f393e0a9e50e24dcca9e", Service: "6e400001b5a3f393e0a9e50e24dcca9e", Properties: device.PropRead | device.PropNotify},
	}, s.peripheral.Characteristics())
}

func (s *PeripheralTestSuite) TestReadWrite() {
	s.connect()
	chars := s.peripheral.Characteristics()
	s.Require().Len(chars, 3)

	data, err := s.peripheral.Read(s.Context(), chars[0])
	s.Require().NoError(err)
	s.Equal([]byte("50"), data)

	s.Require().NoError(s.peripheral.Write(s.Context(), chars[1], []byte("hello"), device.WriteWithoutResponse))
	s.Equal([]byte("hello"), s.Peripherals[0].Value(chars[1].UUID))
}

func (s *PeripheralTestSuite) TestWriteModeSelectsNoResponseFlag() {
	client := s.Peripherals[0].BuildGATTClient()
	s.Radio.ExpectedCalls = nil
	s.Radio.On("Dial", mock.Anything, "AA:BB:CC:DD:EE:FF").Return(client, nil)
	s.connect()
	char := s.peripheral.Characteristics()[1]

	s.Require().NoError(s.peripheral.Write(s.Context(), char, []byte("a"), device.WriteWithoutResponse))
	s.Require().NoError(s.peripheral.Write(s.Context(), char, []byte("b"), device.WriteWithResponse))

	client.AssertCalled(s.T(), "WriteCharacteristic", mock.Anything, []byte("a"), true)
	client.AssertCalled(s.T(), "WriteCharacteristic", mock.Anything, []byte("b"), false)
}

func (s *PeripheralTestSuite) TestDisconnect() {
	s.connect()
	s.Require().NoError(s.peripheral.Disconnect(s.Context()))

	connected, err := s.peripheral.IsConnected(s.Context())
	s.Require().NoError(err)
	s.False(connected)
	s.Empty(s.peripheral.Characteristics())

	_, err = s.peripheral.Read(s.Context(), device.CharacteristicDescriptor{UUID: "2a19"})
	s.ErrorIs(err, device.ErrNotConnected)

	s.NoError(s.peripheral.Disconnect(s.Context()), "second disconnect MUST succeed")
}

func (s *PeripheralTestSuite) TestFailedDisconnectCanBeRetried() {
	// GOAL: Verify a failed CancelConnection keeps the link so a retry reaches the radio again
	//
	// TEST SCENARIO: CancelConnection fails → still connected and readable → retry succeeds → disconnected

	client := s.Peripherals[0].BuildGATTClient()
	calls := client.ExpectedCalls[:0]
	for _, c := range client.ExpectedCalls {
		if c.Method != "CancelConnection" {
			calls = append(calls, c)
		}
	}
	client.ExpectedCalls = calls
	client.On("CancelConnection").Return(errors.New("hci command timed out")).Once()
	client.On("CancelConnection").Return(nil).Once()

	s.Radio.ExpectedCalls = nil
	s.Radio.On("Dial", mock.Anything, "AA:BB:CC:DD:EE:FF").Return(client, nil)
	s.connect()

	err := s.peripheral.Disconnect(s.Context())
	s.Require().ErrorContains(err, "hci command timed out")

	connected, err := s.peripheral.IsConnected(s.Context())
	s.Require().NoError(err)
	s.True(connected, "a failed disconnect MUST keep the connection")
	s.NotEmpty(s.peripheral.Characteristics(), "a failed disconnect MUST keep discovered characteristics")
	_, err = s.peripheral.Read(s.Context(), device.CharacteristicDescriptor{UUID: "2a19"})
	s.NoError(err, "reads MUST keep working after a failed disconnect")

	s.Require().NoError(s.peripheral.Disconnect(s.Context()))
	client.AssertNumberOfCalls(s.T(), "CancelConnection", 2)

	connected, err = s.peripheral.IsConnected(s.Context())
	s.Require().NoError(err)
	s.False(connected)
}

func (s *PeripheralTestSuite) TestRemoteDisconnectIsDetected() {
	client := s.Peripherals[0].BuildGATTClient()
	s.Radio.ExpectedCalls = nil
	s.Radio.On("Dial", mock.Anything, "AA:BB:CC:DD:EE:FF").Return(client, nil)
	s.connect()

	close(client.DisconnectedCh)

	connected, err := s.peripheral.IsConnected(s.Context())
	s.Require().NoError(err)
	s.False(connected)
}

func (s *PeripheralTestSuite) TestFailures() {
	s.Run("dial failure is normalized", func() {
		s.Radio.ExpectedCalls = nil
		s.Radio.On("Dial", mock.Anything, mock.Anything).Return(nil, errors.New("device already connected"))

		err := s.peripheral.Connect(s.Context())
		s.ErrorIs(err, device.ErrAlreadyConnected)
		s.Contains(err.Error(), "AA:BB:CC:DD:EE:FF")
	})

	s.Run("discovery requires a connection", func() {
		err := s.peripheral.DiscoverServices(s.Context())
		s.ErrorIs(err, device.ErrNotConnected)
	})

	s.Run("undiscovered characteristic", func() {
		s.Radio.ExpectedCalls = nil
		s.Radio.On("Dial", mock.Anything, mock.Anything).Return(s.Peripherals[0].BuildGATTClient(), nil)
		s.connect()

		_, err := s.peripheral.Read(s.Context(), device.CharacteristicDescriptor{UUID: "ffff"})
		s.ErrorContains(err, "not discovered")
	})
}

func (s *PeripheralTestSuite) TestProfileErrors() {
	s.Peripherals[0].WithError("DiscoverServices", errors.New("disconnected"))
	s.Radio.ExpectedCalls = nil
	s.Radio.On("Dial", mock.Anything, mock.Anything).Return(s.Peripherals[0].BuildGATTClient(), nil)

	s.Require().NoError(s.peripheral.Connect(s.Context()))
	err := s.peripheral.DiscoverServices(s.Context())
	s.ErrorIs(err, device.ErrNotConnected)
}
