package device

import (
	"fmt"
	"strings"
)

// Properties is the set of capability flags of a characteristic.
type Properties uint8

const (
	PropRead Properties = 1 << iota
	PropWrite
	PropWriteWithoutResponse
	PropNotify
	PropIndicate
)

var propertyNames = []struct {
	flag Properties
	name string
}{
	{PropRead, "read"},
	{PropWrite, "write"},
	{PropWriteWithoutResponse, "write-without-response"},
	{PropNotify, "notify"},
	{PropIndicate, "indicate"},
}

// Has reports whether every flag in f is set.
func (p Properties) Has(f Properties) bool {
	return p&f == f
}

// Readable reports whether a value can be obtained by reading (read or notify).
func (p Properties) Readable() bool {
	return p&(PropRead|PropNotify) != 0
}

// Writable reports whether the characteristic accepts writes in any mode.
func (p Properties) Writable() bool {
	return p&(PropWrite|PropWriteWithoutResponse) != 0
}

// DisplayNames returns the upper-case capability names used by characteristic listings.
// Only READ, WRITE, NOTIFY and INDICATE are reported, in that order.
func (p Properties) DisplayNames() []string {
	names := make([]string, 0, 4)
	if p.Has(PropRead) {
		names = append(names, "READ")
	}
	if p.Has(PropWrite) {
		names = append(names, "WRITE")
	}
	if p.Has(PropNotify) {
		names = append(names, "NOTIFY")
	}
	if p.Has(PropIndicate) {
		names = append(names, "INDICATE")
	}
	return names
}

func (p Properties) String() string {
	parts := make([]string, 0, len(propertyNames))
	for _, pn := range propertyNames {
		if p.Has(pn.flag) {
			parts = append(parts, pn.name)
		}
	}
	return strings.Join(parts, ",")
}

// ParseProperties parses a comma separated list such as "read,write,notify".
// "wnr" and "write-nr" are accepted for write-without-response.
func ParseProperties(s string) (Properties, error) {
	var p Properties
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		switch part {
		case "":
			continue
		case "read":
			p |= PropRead
		case "write":
			p |= PropWrite
		case "write-without-response", "write-nr", "wnr":
			p |= PropWriteWithoutResponse
		case "notify":
			p |= PropNotify
		case "indicate":
			p |= PropIndicate
		default:
			return 0, fmt.Errorf("unknown characteristic property %q", part)
		}
	}
	return p, nil
}
