package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// maxInboundFrameBytes はクライアントから受け付けるフレームの上限。
// 受信メッセージは使わないため小さく抑える。
const maxInboundFrameBytes = 4096

// Gateway はWebSocket接続を受け付け、Registryへ登録する。
// 接続中にクライアントから届くメッセージは読み捨てる。
type Gateway struct {
	registry       *Registry
	allowedOrigins map[string]struct{}
	newID          func() string
}

// NewGateway はGatewayを生成する。
// allowedOriginsが空の場合はOriginを検査しない。Originヘッダーの無いクライアントは常に許可する。
func NewGateway(registry *Registry, allowedOrigins []string) *Gateway {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o != "" {
			origins[o] = struct{}{}
		}
	}
	return &Gateway{
		registry:       registry,
		allowedOrigins: origins,
		newID:          uuid.NewString,
	}
}

// ServeHTTP はWebSocketハンドシェイクを行い、接続のライフサイクルを管理する。
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	server := websocket.Server{
		Handshake: g.checkOrigin,
		Handler:   g.serve,
	}
	server.ServeHTTP(w, r)
}

func (g *Gateway) checkOrigin(cfg *websocket.Config, _ *http.Request) error {
	if len(g.allowedOrigins) == 0 || cfg.Origin == nil {
		return nil
	}
	origin := cfg.Origin.Scheme + "://" + cfg.Origin.Host
	if _, ok := g.allowedOrigins[origin]; !ok {
		return fmt.Errorf("origin %q is not allowed", origin)
	}
	return nil
}

func (g *Gateway) serve(ws *websocket.Conn) {
	ws.MaxPayloadBytes = maxInboundFrameBytes
	// http.ServerのReadTimeoutで設定された期限がハイジャック後も残るため解除する
	_ = ws.SetReadDeadline(time.Time{})

	id := g.newID()
	conn := newWSConn(ws)
	g.registry.Register(id, conn)
	slog.Info("live connection opened",
		slog.String("connection_id", id),
		slog.String("remote_addr", ws.Request().RemoteAddr),
	)

	defer func() {
		g.registry.unregisterIf(id, conn)
		_ = conn.Close()
		slog.Info("live connection closed", slog.String("connection_id", id))
	}()

	for {
		var discard []byte
		if err := websocket.Message.Receive(ws, &discard); err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("live connection read ended",
					slog.String("connection_id", id),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// wsConn はwebsocket.ConnをConnとして扱うためのアダプタ。
type wsConn struct {
	ws        *websocket.Conn
	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

// Send はpayloadをテキストフレームとして送信する。
func (c *wsConn) Send(ctx context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultWriteTimeout)
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	return websocket.Message.Send(c.ws, string(payload))
}

// Close は接続を閉じる。2回目以降は最初の結果を返す。
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
