package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/gorilla/websocket"

	"github.com/chouha-community/gatekeeper/internal/pkg/discord"
)

const (
	defaultGatewayURL = "wss://gateway.discord.gg/"
	gatewayVersion    = "10"

	// Gateway opcodes
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatACK   = 11

	// Intents: GUILDS (1<<0) and GUILD_MEMBERS (1<<1)
	intentGuilds       = 1 << 0
	intentGuildMembers = 1 << 1
)

// MemberAddEvent is the GUILD_MEMBER_ADD dispatch payload.
type MemberAddEvent struct {
	GuildID string        `json:"guild_id"`
	User    *discord.User `json:"user"`
}

// ReadyEvent is the READY dispatch payload subset we read.
type ReadyEvent struct {
	User      *discord.User `json:"user"`
	SessionID string        `json:"session_id"`
}

type payload struct {
	Op   int             `json:"op"`
	Data json.RawMessage `json:"d"`
	Seq  *int64          `json:"s"`
	Type string          `json:"t"`
}

// Session maintains the persistent gateway connection that delivers
// member-join events. Reconnection is handled internally: the session redials
// with a randomized 5-15s backoff capped at 60s, and login failures retry
// after a fixed 10s delay. No dispatched event may terminate the session.
type Session struct {
	token      string
	gatewayURL string

	conn    *websocket.Conn
	connMu  sync.Mutex
	writeMu sync.Mutex
	seq     atomic.Int64
	ready   atomic.Bool
	started atomic.Int64

	// Callbacks (registered before Run, not guarded)
	OnReady      func(ReadyEvent)
	OnMemberAdd  func(MemberAddEvent)
	OnDisconnect func(err error)

	heartbeatStop chan struct{}
}

// NewSession creates a gateway session for the given bot token. Call Run to
// connect.
func NewSession(token string) *Session {
	return &Session{
		token:      token,
		gatewayURL: defaultGatewayURL,
	}
}

// Ready reports whether the gateway handshake has completed and dispatches are
// flowing. The watcher polls this before sending welcome messages.
func (s *Session) Ready() bool {
	return s.ready.Load()
}

// Uptime returns how long the current connection has been up.
func (s *Session) Uptime() time.Duration {
	if !s.ready.Load() {
		return 0
	}
	return time.Since(time.Unix(0, s.started.Load()))
}

// writeJSON funnels every socket write through one mutex. The websocket
// connection permits a single concurrent writer, and both the listen goroutine
// (identify, requested heartbeats) and the heartbeat timer goroutine write.
func (s *Session) writeJSON(conn *websocket.Conn, v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// Run connects and keeps the session alive until ctx is canceled. Every
// failure path reconnects; the loop only exits on context cancellation.
func (s *Session) Run(ctx context.Context) {
	for {
		err := s.connectAndListen(ctx)
		s.ready.Store(false)
		if s.OnDisconnect != nil && err != nil {
			s.OnDisconnect(err)
		}
		if ctx.Err() != nil {
			return
		}

		delay := reconnectDelay(err)
		log.Warnf("[Gateway] Disconnected: %v - reconnecting in %s", err, delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// reconnectDelay picks the retry pause: fixed 10s for login (auth) failures,
// randomized 5-15s capped at 60s otherwise.
func reconnectDelay(err error) time.Duration {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return 10 * time.Second
	}
	d := 5*time.Second + time.Duration(rand.Int63n(int64(10*time.Second)))
	if d > 60*time.Second {
		d = 60 * time.Second
	}
	return d
}

// AuthenticationError marks a login failure (bad token, 4004 close).
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "gateway authentication failed: " + e.Reason
}

func (s *Session) connectAndListen(ctx context.Context) error {
	wsURL, err := s.buildGatewayURL()
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout:  10 * time.Second,
		EnableCompression: true,
	}

	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("gateway dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("gateway dial: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.heartbeatStop = make(chan struct{})
	s.connMu.Unlock()

	defer func() {
		s.connMu.Lock()
		close(s.heartbeatStop)
		conn.Close()
		s.conn = nil
		s.connMu.Unlock()
	}()

	log.Info("[Gateway] Connected, waiting for HELLO")
	return s.listen(ctx, conn)
}

func (s *Session) buildGatewayURL() (string, error) {
	u, err := url.Parse(s.gatewayURL)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	q := u.Query()
	q.Set("v", gatewayVersion)
	q.Set("encoding", "json")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Session) listen(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var p payload
		if err := conn.ReadJSON(&p); err != nil {
			if websocket.IsCloseError(err, 4004) {
				return &AuthenticationError{Reason: err.Error()}
			}
			return fmt.Errorf("gateway read: %w", err)
		}

		if p.Seq != nil {
			s.seq.Store(*p.Seq)
		}

		switch p.Op {
		case opHello:
			var hello struct {
				HeartbeatInterval int64 `json:"heartbeat_interval"`
			}
			if err := json.Unmarshal(p.Data, &hello); err != nil {
				return fmt.Errorf("gateway hello: %w", err)
			}
			go s.heartbeatLoop(conn, time.Duration(hello.HeartbeatInterval)*time.Millisecond)
			if err := s.identify(conn); err != nil {
				return err
			}

		case opHeartbeat:
			s.sendHeartbeat(conn)

		case opHeartbeatACK:
			// nothing to do

		case opReconnect:
			return errors.New("gateway requested reconnect")

		case opInvalidSession:
			return errors.New("gateway invalidated session")

		case opDispatch:
			s.dispatch(p)
		}
	}
}

// dispatch routes a gateway event to the registered callback. Callback panics
// are swallowed so a malformed event can never take the session down.
func (s *Session) dispatch(p payload) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Gateway] Recovered from handler panic on %s: %v", p.Type, r)
		}
	}()

	switch p.Type {
	case "READY":
		var ev ReadyEvent
		if err := json.Unmarshal(p.Data, &ev); err != nil {
			log.Errorf("[Gateway] Bad READY payload: %v", err)
			return
		}
		s.started.Store(time.Now().UnixNano())
		s.ready.Store(true)
		log.Infof("[Gateway] Ready as %s", ev.User.Username)
		if s.OnReady != nil {
			s.OnReady(ev)
		}

	case "GUILD_MEMBER_ADD":
		var ev MemberAddEvent
		if err := json.Unmarshal(p.Data, &ev); err != nil {
			log.Errorf("[Gateway] Bad GUILD_MEMBER_ADD payload: %v", err)
			return
		}
		if ev.User == nil || ev.User.ID == "" {
			log.Error("[Gateway] GUILD_MEMBER_ADD without user, dropping")
			return
		}
		if s.OnMemberAdd != nil {
			s.OnMemberAdd(ev)
		}

	case "RESUMED":
		s.ready.Store(true)
	}
}

func (s *Session) identify(conn *websocket.Conn) error {
	identify := map[string]interface{}{
		"op": opIdentify,
		"d": map[string]interface{}{
			"token":   s.token,
			"intents": intentGuilds | intentGuildMembers,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "gatekeeper",
				"device":  "gatekeeper",
			},
			"presence": map[string]interface{}{
				"activities": []map[string]interface{}{
					{"name": "Verifying members | Chouha Community", "type": 3},
				},
				"status": "online",
			},
		},
	}
	if err := s.writeJSON(conn, identify); err != nil {
		return fmt.Errorf("gateway identify: %w", err)
	}
	return nil
}

func (s *Session) heartbeatLoop(conn *websocket.Conn, interval time.Duration) {
	// Jitter the first beat as the gateway docs require.
	first := time.Duration(rand.Int63n(int64(interval)))
	timer := time.NewTimer(first)
	defer timer.Stop()

	s.connMu.Lock()
	stop := s.heartbeatStop
	s.connMu.Unlock()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			s.sendHeartbeat(conn)
			timer.Reset(interval)
		}
	}
}

func (s *Session) sendHeartbeat(conn *websocket.Conn) {
	var seq interface{}
	if v := s.seq.Load(); v > 0 {
		seq = v
	}
	if err := s.writeJSON(conn, map[string]interface{}{"op": opHeartbeat, "d": seq}); err != nil {
		log.Errorf("[Gateway] Heartbeat write failed: %v", err)
	}
}
