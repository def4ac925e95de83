// Package live はライブ接続の管理とタスクスナップショットの配信を提供する。
package live

import (
	"context"
	"log/slog"
	"sync"
)

// Conn は1つのライブ購読者への送信路。
type Conn interface {
	// Send はエンコード済みのイベントを送信する。ctxの期限を書き込み期限として扱う。
	Send(ctx context.Context, payload []byte) error
	// Close は接続を閉じる。複数回呼んでもよい。
	Close() error
}

// ConnectionGauge は登録中の接続数を記録するインターフェース。
type ConnectionGauge interface {
	SetLiveConnections(n int)
}

// Registry は接続IDをキーにライブ接続を保持する。
// 所有者とは紐付けず、全メソッドは並行に呼び出してよい。
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
	gauge ConnectionGauge
}

// NewRegistry はRegistryを生成する。gaugeはnilでもよい。
func NewRegistry(gauge ConnectionGauge) *Registry {
	return &Registry{
		conns: make(map[string]Conn),
		gauge: gauge,
	}
}

// Register は接続を登録する。同じIDが既にあれば上書きする。
func (r *Registry) Register(id string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[id] = conn
	r.report()
}

// Unregister は接続を登録解除する。未登録のIDに対しては何もしない。
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; ok {
		delete(r.conns, id)
		r.report()
	}
}

// unregisterIf はidに登録されている接続がconnと同一の場合のみ登録解除する。
// 同じIDで再接続された新しい接続を誤って外さないために使う。
func (r *Registry) unregisterIf(id string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.conns[id]; ok && current == conn {
		delete(r.conns, id)
		r.report()
	}
}

// ForEach は呼び出し時点の登録内容のコピーに対してvisitを適用する。
// visitの実行中はロックを保持しないため、visitからRegister/Unregisterを呼んでもよい。
func (r *Registry) ForEach(visit func(id string, conn Conn)) {
	for id, conn := range r.snapshot() {
		visit(id, conn)
	}
}

// Len は登録中の接続数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Drain は全接続を登録解除して閉じ、閉じた数を返す。シャットダウン時に使う。
func (r *Registry) Drain() int {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]Conn)
	r.report()
	r.mu.Unlock()

	for id, conn := range conns {
		if err := conn.Close(); err != nil {
			slog.Warn("failed to close live connection",
				slog.String("connection_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return len(conns)
}

func (r *Registry) snapshot() map[string]Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	copied := make(map[string]Conn, len(r.conns))
	for id, conn := range r.conns {
		copied[id] = conn
	}
	return copied
}

// report はゲージへ現在の接続数を反映する。変更と同じ順序で反映するため、r.muを保持したまま呼ぶ。
func (r *Registry) report() {
	if r.gauge != nil {
		r.gauge.SetLiveConnections(len(r.conns))
	}
}
