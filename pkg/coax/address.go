package coax

import "fmt"

// Address selects a terminal on the bridge.
type Address int

// DirectAddress addresses a terminal attached directly to the bridge.
const DirectAddress Address = -1

// Ports3299 are the multiplexer port addresses, in poll order.
var Ports3299 = []Address{0, 1, 2, 3, 4, 5, 6, 7}

// IsDirect reports whether a is the direct address.
func (a Address) IsDirect() bool {
	return a == DirectAddress
}

// wire returns the address byte used in EXECUTE frames.
func (a Address) wire() byte {
	if a.IsDirect() {
		return 0xff
	}
	return byte(a)
}

func (a Address) String() string {
	if a.IsDirect() {
		return "direct"
	}
	return fmt.Sprintf("3299 port %d", int(a))
}
