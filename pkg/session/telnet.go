package session

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"slices"
	"sync"
	"sync/atomic"
)

// Telnet commands.
const (
	tnSE   byte = 240
	tnEOR  byte = 239
	tnSB   byte = 250
	tnWILL byte = 251
	tnWONT byte = 252
	tnDO   byte = 253
	tnDONT byte = 254
	tnIAC  byte = 255
)

// Telnet options.
const (
	optBinary  byte = 0
	optTTYPE   byte = 24
	optEOR     byte = 25
	optTN3270E byte = 40
)

// TTYPE and TN3270E subnegotiation codes (RFC 1091, RFC 2355).
const (
	ttypeIS   byte = 0
	ttypeSEND byte = 1

	tn3270eConnect    byte = 1
	tn3270eDeviceType byte = 2
	tn3270eFunctions  byte = 3
	tn3270eIS         byte = 4
	tn3270eReason     byte = 5
	tn3270eReject     byte = 6
	tn3270eRequest    byte = 7
	tn3270eSend       byte = 8
)

// TN3270E functions.
const (
	fnBindImage byte = 0
	fnSysreq    byte = 4
)

// TN3270E data types carried in the record header.
const (
	dataType3270      byte = 0x00
	dataTypeSSCPLU    byte = 0x07
	tn3270eHeaderSize      = 5
)

// rejectError is a DEVICE-TYPE REJECT from the host.
type rejectError struct {
	reason byte
}

func (e *rejectError) Error() string {
	return fmt.Sprintf("device type rejected (reason %d)", e.reason)
}

// telnetConn is a TN3270 telnet connection. Option negotiation is handled
// inline while records are read.
type telnetConn struct {
	conn     net.Conn
	r        *bufio.Reader
	termType string
	lu       string
	profile  TN3270EProfile

	wmu   sync.Mutex
	local map[byte]bool

	tn3270e    atomic.Bool
	deviceType string
	connected  string
	functions  []byte
	seq        uint16
}

func newTelnetConn(conn net.Conn, termType, lu string, profile TN3270EProfile) *telnetConn {
	return &telnetConn{
		conn:     conn,
		r:        bufio.NewReader(conn),
		termType: termType,
		lu:       lu,
		profile:  profile,
		local:    make(map[byte]bool),
	}
}

// readRecord returns the next EOR-terminated record with any TN3270E header
// removed. dataType is dataType3270 in classic mode.
func (c *telnetConn) readRecord() (dataType byte, record []byte, err error) {
	var rec []byte
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return 0, nil, err
		}
		if b != tnIAC {
			rec = append(rec, b)
			continue
		}

		cmd, err := c.r.ReadByte()
		if err != nil {
			return 0, nil, err
		}
		switch cmd {
		case tnIAC:
			rec = append(rec, tnIAC)
		case tnEOR:
			if !c.tn3270e.Load() {
				return dataType3270, rec, nil
			}
			if len(rec) < tn3270eHeaderSize {
				return 0, nil, fmt.Errorf("short TN3270E record (%d bytes)", len(rec))
			}
			return rec[0], rec[tn3270eHeaderSize:], nil
		case tnDO, tnDONT, tnWILL, tnWONT:
			opt, err := c.r.ReadByte()
			if err != nil {
				return 0, nil, err
			}
			if err := c.negotiate(cmd, opt); err != nil {
				return 0, nil, err
			}
		case tnSB:
			data, err := c.readSubnegotiation()
			if err != nil {
				return 0, nil, err
			}
			if err := c.subnegotiate(data); err != nil {
				return 0, nil, err
			}
		}
	}
}

func (c *telnetConn) readSubnegotiation() ([]byte, error) {
	var data []byte
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b != tnIAC {
			data = append(data, b)
			continue
		}
		next, err := c.r.ReadByte()
		if err != nil {
			return nil, err
		}
		if next == tnSE {
			return data, nil
		}
		data = append(data, next)
	}
}

func (c *telnetConn) supports(opt byte) bool {
	switch opt {
	case optBinary, optEOR, optTTYPE:
		return true
	case optTN3270E:
		return c.profile != TN3270EOff
	}
	return false
}

func (c *telnetConn) negotiate(cmd, opt byte) error {
	switch cmd {
	case tnDO:
		if !c.supports(opt) {
			return c.send(tnIAC, tnWONT, opt)
		}
		if c.local[opt] {
			return nil
		}
		c.local[opt] = true
		return c.send(tnIAC, tnWILL, opt)
	case tnWILL:
		if opt == optBinary || opt == optEOR {
			return c.send(tnIAC, tnDO, opt)
		}
		return c.send(tnIAC, tnDONT, opt)
	case tnDONT, tnWONT:
		if opt == optTN3270E {
			c.tn3270e.Store(false)
		}
		if cmd == tnDONT && c.local[opt] {
			c.local[opt] = false
			return c.send(tnIAC, tnWONT, opt)
		}
	}
	return nil
}

func (c *telnetConn) subnegotiate(data []byte) error {
	if len(data) < 2 {
		return nil
	}
	switch data[0] {
	case optTTYPE:
		if data[1] != ttypeSEND {
			return nil
		}
		ttype := c.termType
		if c.lu != "" {
			ttype += "@" + c.lu
		}
		return c.sendSub(optTTYPE, append([]byte{ttypeIS}, ttype...))

	case optTN3270E:
		return c.subnegotiateTN3270E(data[1:])
	}
	return nil
}

func (c *telnetConn) subnegotiateTN3270E(data []byte) error {
	switch {
	case len(data) >= 2 && data[0] == tn3270eSend && data[1] == tn3270eDeviceType:
		req := append([]byte{tn3270eDeviceType, tn3270eRequest}, c.termType+"-E"...)
		if c.lu != "" {
			req = append(req, tn3270eConnect)
			req = append(req, c.lu...)
		}
		return c.sendSub(optTN3270E, req)

	case len(data) >= 2 && data[0] == tn3270eDeviceType && data[1] == tn3270eIS:
		rest := data[2:]
		if i := bytes.IndexByte(rest, tn3270eConnect); i >= 0 {
			c.deviceType, c.connected = string(rest[:i]), string(rest[i+1:])
		} else {
			c.deviceType = string(rest)
		}
		c.tn3270e.Store(true)
		return nil

	case len(data) >= 2 && data[0] == tn3270eDeviceType && data[1] == tn3270eReject:
		reason := byte(0)
		if len(data) >= 4 && data[2] == tn3270eReason {
			reason = data[3]
		}
		return &rejectError{reason: reason}

	case len(data) >= 2 && data[0] == tn3270eFunctions && data[1] == tn3270eRequest:
		requested := data[2:]
		accepted := c.acceptFunctions(requested)
		verb := tn3270eIS
		if !bytes.Equal(accepted, requested) {
			verb = tn3270eRequest
		}
		c.functions = accepted
		return c.sendSub(optTN3270E, append([]byte{tn3270eFunctions, verb}, accepted...))

	case len(data) >= 2 && data[0] == tn3270eFunctions && data[1] == tn3270eIS:
		c.functions = slices.Clone(data[2:])
		return nil
	}
	return nil
}

func (c *telnetConn) acceptFunctions(requested []byte) []byte {
	accepted := []byte{}
	if c.profile != TN3270EDefault {
		return accepted
	}
	for _, fn := range requested {
		if fn == fnBindImage || fn == fnSysreq {
			accepted = append(accepted, fn)
		}
	}
	return accepted
}

// writeRecord sends a 3270 data record terminated by IAC EOR.
func (c *telnetConn) writeRecord(data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	buf := make([]byte, 0, len(data)+tn3270eHeaderSize+2)
	if c.tn3270e.Load() {
		c.seq++
		buf = append(buf, dataType3270, 0, 0, byte(c.seq>>8), byte(c.seq))
	}
	buf = append(buf, data...)
	buf = bytes.ReplaceAll(buf, []byte{tnIAC}, []byte{tnIAC, tnIAC})
	buf = append(buf, tnIAC, tnEOR)
	return c.write(buf)
}

func (c *telnetConn) sendSub(opt byte, payload []byte) error {
	buf := []byte{tnIAC, tnSB, opt}
	buf = append(buf, bytes.ReplaceAll(payload, []byte{tnIAC}, []byte{tnIAC, tnIAC})...)
	buf = append(buf, tnIAC, tnSE)
	return c.send(buf...)
}

func (c *telnetConn) send(b ...byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.write(b)
}

func (c *telnetConn) write(b []byte) error {
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("telnet write: %w", err)
	}
	return nil
}

func (c *telnetConn) Close() error {
	return c.conn.Close()
}
