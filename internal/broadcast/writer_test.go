package broadcast

import (
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientWriter_DeliversMessages(t *testing.T) {
	server, client := newTestConnPair(t)
	cw := newClientWriter(server, clockwork.NewRealClock())
	t.Cleanup(cw.stop)

	cw.sendChannel <- []byte(`{"type":"chat_message"}`)

	client.SetReadDeadline(time.Now().Add(time.Second))
	msgType, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, ws.TextMessage, msgType)
	assert.Equal(t, `{"type":"chat_message"}`, string(msg))
}

func TestClientWriter_PreservesOrder(t *testing.T) {
	server, client := newTestConnPair(t)
	cw := newClientWriter(server, clockwork.NewRealClock())
	t.Cleanup(cw.stop)

	cw.sendChannel <- []byte("first")
	cw.sendChannel <- []byte("second")
	cw.sendChannel <- []byte("third")

	for _, want := range []string{"first", "second", "third"} {
		client.SetReadDeadline(time.Now().Add(time.Second))
		_, msg, err := client.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(msg))
	}
}

func TestClientWriter_StopGracefulSendsCloseFrame(t *testing.T) {
	server, client := newTestConnPair(t)
	cw := newClientWriter(server, clockwork.NewRealClock())

	cw.stopGraceful("going away")

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
	assert.True(t, ws.IsCloseError(err, ws.CloseNormalClosure))
}

func TestClientWriter_StopTwiceSafe(t *testing.T) {
	server, _ := newTestConnPair(t)
	cw := newClientWriter(server, clockwork.NewRealClock())

	cw.stop()
	cw.stop()
}
