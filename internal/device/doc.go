// Package device defines the platform BLE capability the session manager is
// built on.
//
// The package contains no hardware code. It describes:
//   - Provider, Adapter and Peripheral, the narrow capability interfaces a
//     platform stack (see the go-ble subpackage) implements
//   - immutable snapshots handed to callers (DeviceDescriptor,
//     CharacteristicDescriptor, PeripheralProperties)
//   - characteristic capability flags and UUID normalization
//   - normalized platform errors (ErrBluetoothOff, ErrNotConnected, ErrNoAdapter)
package device
