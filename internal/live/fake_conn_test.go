package live

import (
	"context"
	"sync"
	"time"
)

// --- モック ---

// fakeConn は送信内容を記録するConnの実装。
type fakeConn struct {
	mu       sync.Mutex
	payloads [][]byte
	sendErr  error
	// blockUntilDone がtrueの場合、Sendはctxがキャンセルされるまでブロックしctx.Err()を返す
	blockUntilDone bool
	closed         int
}

func (c *fakeConn) Send(ctx context.Context, payload []byte) error {
	if c.blockUntilDone {
		<-ctx.Done()
		return ctx.Err()
	}
	// 実際の接続と同様、期限切れ・キャンセル済みのctxでは書き込まない
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	return nil
}

func (c *fakeConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.payloads...)
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeGauge struct {
	mu   sync.Mutex
	last int
}

func (g *fakeGauge) SetLiveConnections(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = n
}

func (g *fakeGauge) value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

type fakeBroadcastMetrics struct {
	mu         sync.Mutex
	broadcasts int
	failures   int
}

func (m *fakeBroadcastMetrics) RecordBroadcast(_ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts++
}

func (m *fakeBroadcastMetrics) RecordDeliveryFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}
