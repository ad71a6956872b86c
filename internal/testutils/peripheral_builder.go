package testutils

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-ble/ble"
	"github.com/srg/blesh/internal/device"
	goble "github.com/srg/blesh/internal/device/go-ble"
	"github.com/srg/blesh/internal/testutils/mocks"
	"github.com/stretchr/testify/mock"
)

// CharacteristicConfig describes a mocked characteristic
type CharacteristicConfig struct {
	UUID       string `json:"uuid"`
	Properties string `json:"properties,omitempty"` // e.g. "read,write,notify"
	Value      string `json:"value,omitempty"`
}

// ServiceConfig describes a mocked service
type ServiceConfig struct {
	UUID            string                 `json:"uuid"`
	Characteristics []CharacteristicConfig `json:"characteristics,omitempty"`
}

// PeripheralProfile is the complete description of a mocked peripheral
type PeripheralProfile struct {
	Address  string          `json:"address"`
	Name     string          `json:"name"`
	RSSI     int             `json:"rssi"`
	Services []ServiceConfig `json:"services"`
}

// PeripheralBuilder builds mocked peripherals from a profile.
//
// The same profile can be rendered at two levels: as a *mocks.MockPeripheral for
// tests of the session manager, or as an advertisement plus a go-ble GATT profile
// for tests that go through the go-ble adapter.
//
// Characteristic values are shared by every rendering and behave like a loopback:
// a write replaces the value a later read returns.
type PeripheralBuilder struct {
	profile   PeripheralProfile
	connected bool
	errs      map[string]error

	mu     sync.Mutex
	values map[string][]byte
}

// NewPeripheralBuilder creates a builder for a peripheral without services
func NewPeripheralBuilder() *PeripheralBuilder {
	return &PeripheralBuilder{
		profile: PeripheralProfile{RSSI: -50, Services: []ServiceConfig{}},
		errs:    make(map[string]error),
	}
}

// FromJSON replaces the profile with the one described by JSON
func (b *PeripheralBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *PeripheralBuilder {
	jsonStr := fmt.Sprintf(jsonStrFmt, args...)

	var profile PeripheralProfile
	if err := json.Unmarshal([]byte(jsonStr), &profile); err != nil {
		panic(fmt.Sprintf("PeripheralBuilder.FromJSON: failed to unmarshal: %v", err))
	}
	b.profile = profile
	return b
}

func (b *PeripheralBuilder) WithAddress(address string) *PeripheralBuilder {
	b.profile.Address = address
	return b
}

func (b *PeripheralBuilder) WithName(name string) *PeripheralBuilder {
	b.profile.Name = name
	return b
}

func (b *PeripheralBuilder) WithRSSI(rssi int) *PeripheralBuilder {
	b.profile.RSSI = rssi
	return b
}

// WithService adds a service to the profile
func (b *PeripheralBuilder) WithService(uuid string) *PeripheralBuilder {
	b.profile.Services = append(b.profile.Services, ServiceConfig{UUID: uuid})
	return b
}

// WithCharacteristic adds a characteristic to the last added service
func (b *PeripheralBuilder) WithCharacteristic(uuid, properties, value string) *PeripheralBuilder {
	if len(b.profile.Services) == 0 {
		panic("WithCharacteristic: no service added yet, call WithService first")
	}

	last := len(b.profile.Services) - 1
	b.profile.Services[last].Characteristics = append(b.profile.Services[last].Characteristics, CharacteristicConfig{
		UUID:       uuid,
		Properties: properties,
		Value:      value,
	})
	return b
}

// AlreadyConnected makes the peripheral report a platform-level connection before Connect
func (b *PeripheralBuilder) AlreadyConnected() *PeripheralBuilder {
	b.connected = true
	return b
}

// WithError makes the named operation fail with err. Names are the device.Peripheral
// method names: Properties, IsConnected, Connect, Disconnect, DiscoverServices, Read, Write.
func (b *PeripheralBuilder) WithError(method string, err error) *PeripheralBuilder {
	b.errs[method] = err
	return b
}

// Profile returns the configured profile
func (b *PeripheralBuilder) Profile() PeripheralProfile {
	return b.profile
}

// Characteristics returns the profile characteristics as discovered descriptors,
// in service order then characteristic order.
func (b *PeripheralBuilder) Characteristics() []device.CharacteristicDescriptor {
	var chars []device.CharacteristicDescriptor
	for _, svc := range b.profile.Services {
		for _, c := range svc.Characteristics {
			chars = append(chars, device.CharacteristicDescriptor{
				UUID:       device.NormalizeUUID(c.UUID),
				Service:    device.NormalizeUUID(svc.UUID),
				Properties: mustParseProperties(c.Properties),
			})
		}
	}
	return chars
}

// Value returns the current value of a characteristic, including written data
func (b *PeripheralBuilder) Value(uuid string) []byte {
	b.initValues()

	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.values[device.NormalizeUUID(uuid)]...)
}

func (b *PeripheralBuilder) setValue(uuid string, data []byte) {
	b.initValues()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[device.NormalizeUUID(uuid)] = append([]byte(nil), data...)
}

func (b *PeripheralBuilder) initValues() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.values != nil {
		return
	}
	b.values = make(map[string][]byte)
	for _, svc := range b.profile.Services {
		for _, c := range svc.Characteristics {
			b.values[device.NormalizeUUID(c.UUID)] = []byte(c.Value)
		}
	}
}

// Build renders the profile as a device.Peripheral mock. Every expectation is optional.
func (b *PeripheralBuilder) Build() *mocks.MockPeripheral {
	b.initValues()

	p := &mocks.MockPeripheral{}
	address := b.profile.Address

	var connected atomic.Bool
	connected.Store(b.connected)

	p.On("ID").Return(address).Maybe()
	p.On("Address").Return(address).Maybe()

	if err := b.errs["Properties"]; err != nil {
		p.On("Properties", mock.Anything).Return(nil, err).Maybe()
	} else {
		rssi := b.profile.RSSI
		p.On("Properties", mock.Anything).Return(&device.PeripheralProperties{
			LocalName:   b.profile.Name,
			Address:     address,
			RSSI:        &rssi,
			Connectable: true,
		}, nil).Maybe()
	}

	if err := b.errs["IsConnected"]; err != nil {
		p.On("IsConnected", mock.Anything).Return(false, err).Maybe()
	} else {
		p.On("IsConnected", mock.Anything).Return(func() bool { return connected.Load() }, nil).Maybe()
	}

	p.On("Connect", mock.Anything).Return(b.errs["Connect"]).Run(func(mock.Arguments) {
		if b.errs["Connect"] == nil {
			connected.Store(true)
		}
	}).Maybe()
	p.On("Disconnect", mock.Anything).Return(b.errs["Disconnect"]).Run(func(mock.Arguments) {
		if b.errs["Disconnect"] == nil {
			connected.Store(false)
		}
	}).Maybe()
	p.On("DiscoverServices", mock.Anything).Return(b.errs["DiscoverServices"]).Maybe()
	p.On("Characteristics").Return(b.Characteristics()).Maybe()

	if err := b.errs["Read"]; err != nil {
		p.On("Read", mock.Anything, mock.Anything).Return(nil, err).Maybe()
	} else {
		p.On("Read", mock.Anything, mock.Anything).Return(func(c device.CharacteristicDescriptor) []byte {
			return b.Value(c.UUID)
		}, nil).Maybe()
	}

	p.On("Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(b.errs["Write"]).Run(func(args mock.Arguments) {
		if b.errs["Write"] != nil {
			return
		}
		c := args.Get(1).(device.CharacteristicDescriptor)
		b.setValue(c.UUID, args.Get(2).([]byte))
	}).Maybe()

	return p
}

// Advertisement renders the profile as a scan advertisement
func (b *PeripheralBuilder) Advertisement() goble.Advertisement {
	services := make([]string, 0, len(b.profile.Services))
	for _, svc := range b.profile.Services {
		services = append(services, device.NormalizeUUID(svc.UUID))
	}
	return goble.Advertisement{
		LocalName:   b.profile.Name,
		Address:     b.profile.Address,
		RSSI:        b.profile.RSSI,
		TxPower:     127,
		Connectable: true,
		Services:    services,
	}
}

// BLEProfile renders the profile as the go-ble GATT profile returned by discovery
func (b *PeripheralBuilder) BLEProfile() *ble.Profile {
	profile := &ble.Profile{}
	for _, svcConfig := range b.profile.Services {
		svc := &ble.Service{UUID: ble.MustParse(svcConfig.UUID)}
		for _, c := range svcConfig.Characteristics {
			svc.Characteristics = append(svc.Characteristics, &ble.Characteristic{
				UUID:     ble.MustParse(c.UUID),
				Property: bleProperty(mustParseProperties(c.Properties)),
				Value:    []byte(c.Value),
			})
		}
		profile.Services = append(profile.Services, svc)
	}
	return profile
}

// BuildGATTClient renders the profile as a go-ble client mock serving BLEProfile
func (b *PeripheralBuilder) BuildGATTClient() *mocks.MockGATTClient {
	b.initValues()

	client := &mocks.MockGATTClient{DisconnectedCh: make(chan struct{})}
	if err := b.errs["DiscoverServices"]; err != nil {
		client.On("DiscoverProfile", true).Return(nil, err).Maybe()
	} else {
		client.On("DiscoverProfile", true).Return(b.BLEProfile(), nil).Maybe()
	}

	client.On("CancelConnection").Return(b.errs["Disconnect"]).Maybe()

	if err := b.errs["Read"]; err != nil {
		client.On("ReadCharacteristic", mock.Anything).Return(nil, err).Maybe()
	} else {
		client.On("ReadCharacteristic", mock.Anything).Return(func(c *ble.Characteristic) []byte {
			return b.Value(c.UUID.String())
		}, nil).Maybe()
	}

	client.On("WriteCharacteristic", mock.Anything, mock.Anything, mock.Anything).Return(b.errs["Write"]).Run(func(args mock.Arguments) {
		if b.errs["Write"] != nil {
			return
		}
		c := args.Get(0).(*ble.Characteristic)
		b.setValue(c.UUID.String(), args.Get(1).([]byte))
	}).Maybe()

	return client
}

func mustParseProperties(s string) device.Properties {
	if s == "" {
		return device.PropRead | device.PropWrite | device.PropNotify
	}
	props, err := device.ParseProperties(s)
	if err != nil {
		panic(fmt.Sprintf("invalid characteristic properties %q: %v", s, err))
	}
	return props
}

func bleProperty(p device.Properties) ble.Property {
	var out ble.Property
	if p.Has(device.PropRead) {
		out |= ble.CharRead
	}
	if p.Has(device.PropWrite) {
		out |= ble.CharWrite
	}
	if p.Has(device.PropWriteWithoutResponse) {
		out |= ble.CharWriteNR
	}
	if p.Has(device.PropNotify) {
		out |= ble.CharNotify
	}
	if p.Has(device.PropIndicate) {
		out |= ble.CharIndicate
	}
	return out
}
