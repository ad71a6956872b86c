package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/srg/blesh/internal/device"
	"golang.org/x/text/encoding/unicode"
)

// Write sends data to the characteristic identified by charUUID, or to the first
// writable characteristic when charUUID is empty. The write is always issued
// without response. Returns the number of bytes written.
func (m *Manager) Write(ctx context.Context, data string, charUUID string) (int, error) {
	const op = "write"

	conn, err := m.requireConnection(op)
	if err != nil {
		return 0, err
	}

	char, err := resolveCharacteristic(op, conn.characteristics, charUUID, device.Properties.Writable, KindNoWritableCharacteristic)
	if err != nil {
		return 0, err
	}

	payload := []byte(data)
	m.logger.WithFields(logrus.Fields{
		"op":   op,
		"char": char.UUID,
		"len":  len(payload),
	}).Debug("Writing")

	if err := conn.peripheral.Write(ctx, char, payload, device.WriteWithoutResponse); err != nil {
		return 0, &Error{Kind: KindWrite, Op: op, Detail: char.UUID, Err: err}
	}
	return len(payload), nil
}

// Read reads the characteristic identified by charUUID, or the first readable
// characteristic when charUUID is empty. Invalid UTF-8 is replaced, never rejected.
func (m *Manager) Read(ctx context.Context, charUUID string) (string, error) {
	const op = "read"

	conn, err := m.requireConnection(op)
	if err != nil {
		return "", err
	}

	char, err := resolveCharacteristic(op, conn.characteristics, charUUID, device.Properties.Readable, KindNoReadableCharacteristic)
	if err != nil {
		return "", err
	}

	data, err := conn.peripheral.Read(ctx, char)
	if err != nil {
		return "", &Error{Kind: KindRead, Op: op, Detail: char.UUID, Err: err}
	}

	m.logger.WithFields(logrus.Fields{
		"op":   op,
		"char": char.UUID,
		"len":  len(data),
	}).Debug("Read")
	return decodeLossy(data), nil
}

// ListCharacteristics formats the cached characteristics of the session. It never
// touches the hardware and returns an empty list when there is no session.
func (m *Manager) ListCharacteristics() ([]string, error) {
	const op = "listCharacteristics"

	if _, err := m.currentAdapter(op); err != nil {
		return nil, err
	}
	conn, err := m.currentConnection(op)
	if err != nil {
		return nil, err
	}

	lines := []string{}
	if conn == nil {
		return lines, nil
	}
	for _, c := range conn.characteristics {
		lines = append(lines, fmt.Sprintf("UUID: %s | Properties: %s",
			device.FullUUID(c.UUID), strings.Join(c.Properties.DisplayNames(), ", ")))
	}
	return lines, nil
}

func (m *Manager) requireConnection(op string) (*connection, error) {
	if _, err := m.currentAdapter(op); err != nil {
		return nil, err
	}
	conn, err := m.currentConnection(op)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, newError(KindNotConnected, op, nil)
	}
	return conn, nil
}

// resolveCharacteristic picks the target characteristic. An explicit UUID must match
// exactly and never falls back to auto-selection.
func resolveCharacteristic(
	op string,
	chars []device.CharacteristicDescriptor,
	charUUID string,
	accept func(device.Properties) bool,
	noneKind ErrorKind,
) (device.CharacteristicDescriptor, error) {
	if strings.TrimSpace(charUUID) != "" {
		want, err := device.ParseUUID(charUUID)
		if err != nil {
			return device.CharacteristicDescriptor{}, &Error{Kind: KindInvalidUUID, Op: op, Detail: charUUID, Err: err}
		}
		for _, c := range chars {
			if device.NormalizeUUID(c.UUID) == want {
				return c, nil
			}
		}
		return device.CharacteristicDescriptor{}, &Error{Kind: KindCharacteristicNotFound, Op: op, Detail: charUUID}
	}

	for _, c := range chars {
		if accept(c.Properties) {
			return c, nil
		}
	}
	return device.CharacteristicDescriptor{}, newError(noneKind, op, nil)
}

// decodeLossy decodes data as UTF-8, replacing ill-formed sequences with U+FFFD
func decodeLossy(data []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(out)
}
