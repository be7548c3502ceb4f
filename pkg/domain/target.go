package domain

import (
	"net"
	"strconv"
	"strings"
)

// HostTarget is a resolved TN3270 host address.
type HostTarget struct {
	Host string
	Port int

	// LUNames is nil when no LU was requested. A non-nil slice always holds at
	// least one entry, in the order given by the user.
	LUNames []string
}

// HasLUNames reports whether specific LUs were requested.
func (t HostTarget) HasLUNames() bool {
	return t.LUNames != nil
}

// Addr returns the dialable "host:port" form.
func (t HostTarget) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t HostTarget) String() string {
	if t.LUNames == nil {
		return t.Addr()
	}
	return strings.Join(t.LUNames, ",") + "@" + t.Addr()
}
