package coax

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startBridge serves frames on one end of a pipe until it is closed.
func startBridge(t *testing.T, handle func(req []byte) []byte) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	go func() {
		for {
			req, err := readFrame(server)
			if err != nil {
				return
			}
			if err := writeFrame(server, handle(req)); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() { server.Close() })
	return client
}

func bridgeHandler(execute func(addr byte, code byte, data []byte) []byte) func([]byte) []byte {
	return func(req []byte) []byte {
		switch req[0] {
		case opReset:
			return []byte{statusOK, 1, 2, 3, byte(FeatureProtocol3299)}
		case opExecute:
			return execute(req[1], req[4], req[5:])
		default:
			return []byte{statusError, errCodeProtocolError}
		}
	}
}

func TestNewLink_Reset(t *testing.T) {
	conn := startBridge(t, bridgeHandler(nil))

	link, err := NewLink(context.Background(), "pipe", conn)
	require.NoError(t, err)
	defer link.Close()

	assert.Equal(t, "pipe", link.Name())
	assert.Equal(t, "1.2.3", link.Version())
	assert.True(t, link.Features().Has(FeatureProtocol3299))
}

func TestSerialLink_Execute(t *testing.T) {
	var gotAddr byte
	conn := startBridge(t, bridgeHandler(func(addr, code byte, data []byte) []byte {
		gotAddr = addr
		switch code {
		case CodeReadTerminalID:
			return []byte{statusOK, 0x04}
		case CodeReadExtendedID:
			return []byte{statusError, errCodeReceiveTimeout}
		case CodePoll:
			return []byte{statusError, errCodeReceiveError, 'p', 'a', 'r', 'i', 't', 'y'}
		default:
			return []byte{statusError, 0x7f}
		}
	}))

	link, err := NewLink(context.Background(), "pipe", conn, WithReceiveTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer link.Close()
	ctx := context.Background()

	t.Run("OK response", func(t *testing.T) {
		data, err := link.Execute(ctx, DirectAddress, Command{Code: CodeReadTerminalID})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x04}, data)
		assert.Equal(t, byte(0xff), gotAddr)
	})

	t.Run("Receive timeout", func(t *testing.T) {
		_, err := link.Execute(ctx, Address(3), Command{Code: CodeReadExtendedID})
		assert.ErrorIs(t, err, ErrReceiveTimeout)
		assert.Equal(t, byte(3), gotAddr)
	})

	t.Run("Receive error with message", func(t *testing.T) {
		_, err := link.Execute(ctx, DirectAddress, Command{Code: CodePoll})
		assert.ErrorIs(t, err, ErrReceiveError)
		assert.ErrorContains(t, err, "parity")
	})

	t.Run("Unknown error code", func(t *testing.T) {
		_, err := link.Execute(ctx, DirectAddress, Command{Code: 0x55})
		assert.ErrorIs(t, err, ErrProtocolError)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := link.Execute(cctx, DirectAddress, Command{Code: CodeReadTerminalID})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSerialLink_Close(t *testing.T) {
	conn := startBridge(t, bridgeHandler(nil))
	link, err := NewLink(context.Background(), "pipe", conn)
	require.NoError(t, err)

	require.NoError(t, link.Close())
	assert.NoError(t, link.Close(), "second close is a no-op")

	_, err = link.Execute(context.Background(), DirectAddress, Command{Code: CodePoll})
	assert.Error(t, err)
}

func TestNewLink_ShortReset(t *testing.T) {
	conn := startBridge(t, func(req []byte) []byte {
		return []byte{statusOK, 1}
	})

	_, err := NewLink(context.Background(), "pipe", conn)
	assert.ErrorIs(t, err, ErrProtocolError)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) { return 0, nil }

func TestReadFrame_SerialTimeout(t *testing.T) {
	_, err := readFrame(zeroReader{})
	assert.ErrorIs(t, err, ErrReadTimeout)
}

func TestAddress_String(t *testing.T) {
	assert.Equal(t, "direct", DirectAddress.String())
	assert.Equal(t, "3299 port 5", Address(5).String())
	assert.Len(t, Ports3299, 8)
}
