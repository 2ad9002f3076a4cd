package lavalink

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// reconnectWait is the fixed backoff between connection attempts.
// Deliberately not exponential; the reference behavior is a plain,
// bounded delay retried until explicitly closed.
const reconnectWait = 10 * time.Second

// socket is the long-lived event stream connection to one node. One
// read loop per node; every inbound frame is handed to the node's
// serial executor, so a slow handler never stalls frame delivery.
type socket struct {
	node    *Node
	url     string
	headers http.Header
	log     *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed atomic.Bool
}

func newSocket(n *Node) *socket {
	scheme := "ws"
	if n.cfg.Secure {
		scheme = "wss"
	}
	headers := http.Header{}
	headers.Set("Authorization", n.cfg.Password)
	headers.Set("User-Id", n.cfg.UserID)
	headers.Set("Client-Name", "lavalink-go/"+libraryVersion)
	headers.Set("Num-Shards", strconv.Itoa(n.cfg.ShardCount))
	return &socket{
		node:    n,
		url:     fmt.Sprintf("%s://%s:%d/%s/websocket", scheme, n.cfg.Host, n.cfg.Port, apiVersion),
		headers: headers,
		log:     n.log,
	}
}

// run dials and re-dials the node until closed. Authentication
// failures are fatal and stop the loop; every other failure waits the
// fixed backoff and retries.
func (s *socket) run(ctx context.Context) {
	for {
		if s.closed.Load() || ctx.Err() != nil {
			return
		}

		s.log.Info("connecting to event stream", zap.String("url", s.url))
		conn, res, err := websocket.DefaultDialer.DialContext(ctx, s.url, s.headers)
		if err != nil {
			if res != nil && (res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden) {
				s.log.Error("authentication rejected, giving up", zap.Int("status", res.StatusCode))
				s.node.setFatal(ErrAuthentication)
				return
			}
			s.log.Warn("connection failed, retrying",
				zap.Error(err),
				zap.Duration("backoff", reconnectWait))
			if !s.wait(ctx) {
				return
			}
			continue
		}

		s.setConn(conn)
		s.readLoop(conn)

		// The session id died with the connection; players cannot be
		// trusted as connected until the next ready handshake.
		s.node.clearSession()
		if s.closed.Load() || ctx.Err() != nil {
			return
		}
		s.log.Warn("event stream closed unexpectedly, reconnecting",
			zap.Duration("backoff", reconnectWait))
		if !s.wait(ctx) {
			return
		}
	}
}

func (s *socket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read loop ended", zap.Error(err))
			}
			return
		}
		s.node.handleFrame(data)
	}
}

func (s *socket) wait(ctx context.Context) bool {
	select {
	case <-time.After(reconnectWait):
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *socket) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
}

func (s *socket) close() {
	s.closed.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		_ = s.conn.Close()
		s.conn = nil
	}
}
