package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func TestReconnectDelayAuthFailure(t *testing.T) {
	err := &AuthenticationError{Reason: "4004"}
	assert.Equal(t, 10*time.Second, reconnectDelay(err))
}

func TestReconnectDelayRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		d := reconnectDelay(errors.New("read: connection reset"))
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.LessOrEqual(t, d, 60*time.Second)
	}
}

func TestBuildGatewayURL(t *testing.T) {
	s := NewSession("token")

	u, err := s.buildGatewayURL()
	assert.NoError(t, err)
	assert.Contains(t, u, "wss://gateway.discord.gg/")
	assert.Contains(t, u, "v=10")
	assert.Contains(t, u, "encoding=json")
}

func TestSessionNotReadyBeforeConnect(t *testing.T) {
	s := NewSession("token")
	assert.False(t, s.Ready())
	assert.Equal(t, time.Duration(0), s.Uptime())
}

func TestUptimeAfterReady(t *testing.T) {
	s := NewSession("token")
	s.started.Store(time.Now().Add(-time.Minute).UnixNano())
	s.ready.Store(true)
	assert.GreaterOrEqual(t, s.Uptime(), time.Minute)
}

// A server-requested heartbeat (op 1) arriving while the heartbeat timer fires
// makes two goroutines write to the same connection. The run fails under the
// race detector if those writes are not serialized.
func TestHeartbeatWritesAreSerialized(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		// Drain client writes (identify + heartbeats) so they never block.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		// 1ms heartbeat interval keeps the timer goroutine writing while the
		// op-1 spam below makes the listen goroutine write too.
		if err := conn.WriteJSON(map[string]interface{}{
			"op": opHello,
			"d":  map[string]interface{}{"heartbeat_interval": 1},
		}); err != nil {
			return
		}
		for i := 0; i < 200; i++ {
			if err := conn.WriteJSON(map[string]interface{}{"op": opHeartbeat}); err != nil {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	s := NewSession("token")
	s.gatewayURL = "ws" + strings.TrimPrefix(server.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Returns with a read error once the server hangs up; the session must
	// survive the write contention to get there.
	err := s.connectAndListen(ctx)
	assert.Error(t, err)
}
