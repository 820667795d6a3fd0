package telnet

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFilterIAC_NoIAC(t *testing.T) {
	input := []byte("keys them 3")
	assert.Equal(t, input, FilterIAC(input))
}

func TestFilterIAC_OptionCommands(t *testing.T) {
	assert.Equal(t, []byte("hi"), FilterIAC([]byte{IAC, WILL, OptEcho, 'h', 'i'}))
	assert.Equal(t, []byte("ok"), FilterIAC([]byte{IAC, WONT, OptSuppressGoAhead, 'o', 'k'}))
	assert.Equal(t, []byte("ab"), FilterIAC([]byte{'a', IAC, DO, OptLinemode, 'b'}))
	assert.Empty(t, FilterIAC([]byte{IAC, DONT, OptEcho}))
}

func TestFilterIAC_SubNegotiation(t *testing.T) {
	input := []byte{IAC, SB, 24, 0, 'x', 't', 'e', 'r', 'm', IAC, SE, 'z'}
	assert.Equal(t, []byte("z"), FilterIAC(input))
}

func TestFilterIAC_EscapedIAC(t *testing.T) {
	assert.Equal(t, []byte{'a', IAC, 'b'}, FilterIAC([]byte{'a', IAC, IAC, 'b'}))
}

func TestFilterIAC_NOP(t *testing.T) {
	assert.Equal(t, []byte("xy"), FilterIAC([]byte{'x', IAC, NOP, 'y'}))
}

func TestPropertyFilterIAC_NoIACBytesPassThrough(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := rapid.SliceOf(rapid.ByteRange(0, 254)).Draw(t, "input")
		assert.Equal(t, input, FilterIAC(input))
	})
}

func TestPropertyFilterIAC_UnescapesEscapedData(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		escaped := bytes.ReplaceAll(data, []byte{IAC}, []byte{IAC, IAC})
		assert.Equal(t, data, FilterIAC(escaped))
	})
}

func TestPropertyFilterIAC_OutputNeverLongerThanInput(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		input := rapid.SliceOf(rapid.Byte()).Draw(t, "input")
		assert.LessOrEqual(t, len(FilterIAC(input)), len(input))
	})
}

// pipeConn returns a Conn over one end of an in-memory pipe and the peer end.
func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return NewConn(server, time.Second, time.Second), client
}

func TestConn_ReadLineFiltersNegotiationAndControl(t *testing.T) {
	conn, peer := pipeConn(t)
	go func() {
		_, _ = peer.Write([]byte{IAC, DO, OptSuppressGoAhead})
		_, _ = peer.Write([]byte("ke\x07ys 3\r\nsummary\n"))
	}()

	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "keys 3", line)

	line, err = conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "summary", line)
}

func TestConn_ReadLineEOF(t *testing.T) {
	conn, peer := pipeConn(t)
	go func() {
		_, _ = peer.Write([]byte("partial"))
		peer.Close()
	}()
	line, err := conn.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "partial", line)
}

func TestConn_WriteLines(t *testing.T) {
	conn, peer := pipeConn(t)
	go func() {
		_ = conn.WriteLines([]string{"a", "b"})
	}()
	buf := make([]byte, 16)
	_ = peer.SetReadDeadline(time.Now().Add(time.Second))
	n, err := io.ReadAtLeast(peer, buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "a\r\nb\r\n", string(buf[:n]))
}

func TestConn_WriteLinesEmptyWritesNothing(t *testing.T) {
	conn, _ := pipeConn(t)
	assert.NoError(t, conn.WriteLines(nil))
}
