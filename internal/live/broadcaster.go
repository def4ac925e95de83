package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/tasklive/internal/model"
)

// EventLiveData はスナップショット配信のイベント名。
const EventLiveData = "liveData"

// DefaultWriteTimeout は1接続あたりの既定書き込み期限。
const DefaultWriteTimeout = 5 * time.Second

// Event はライブ接続へ送るメッセージ。
type Event struct {
	Name string             `json:"event"`
	Data model.TaskSnapshot `json:"data"`
}

// SnapshotSource は所有者のタスク一覧を取得するインターフェース。
type SnapshotSource interface {
	FindByOwner(ctx context.Context, ownerID int64) ([]model.Task, error)
}

// BroadcastMetrics は配信結果を記録するインターフェース。
type BroadcastMetrics interface {
	RecordBroadcast(duration time.Duration)
	RecordDeliveryFailure()
}

// Broadcaster はタスクスナップショットを登録中の全接続へ配信する。
// 配信はベストエフォートで、失敗は呼び出し元へ返さない。
type Broadcaster struct {
	registry     *Registry
	source       SnapshotSource
	metrics      BroadcastMetrics
	writeTimeout time.Duration
}

// NewBroadcaster はBroadcasterを生成する。
// writeTimeoutが0以下の場合はDefaultWriteTimeoutを使う。metricsはnilでもよい。
func NewBroadcaster(registry *Registry, source SnapshotSource, metrics BroadcastMetrics, writeTimeout time.Duration) *Broadcaster {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Broadcaster{
		registry:     registry,
		source:       source,
		metrics:      metrics,
		writeTimeout: writeTimeout,
	}
}

// Push はsnapshotを登録中の全接続へ並行に送信し、すべての送信が終わるまで待つ。
// 送信に失敗した接続は登録解除して閉じる。
// 呼び出し元のキャンセルは配信に影響しない。各送信の期限はwriteTimeoutのみで決まる。
func (b *Broadcaster) Push(ctx context.Context, snapshot model.TaskSnapshot) {
	ctx = context.WithoutCancel(ctx)
	if snapshot == nil {
		snapshot = model.TaskSnapshot{}
	}

	payload, err := json.Marshal(Event{Name: EventLiveData, Data: snapshot})
	if err != nil {
		slog.Error("failed to encode live event", slog.String("error", err.Error()))
		return
	}

	start := time.Now()
	var wg sync.WaitGroup
	b.registry.ForEach(func(id string, conn Conn) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.deliver(ctx, id, conn, payload)
		}()
	})
	wg.Wait()

	if b.metrics != nil {
		b.metrics.RecordBroadcast(time.Since(start))
	}
}

// Broadcast は所有者のスナップショットを取得してPushする。
// 取得に失敗した場合はログに記録するのみ。
func (b *Broadcaster) Broadcast(ctx context.Context, ownerID int64) {
	ctx = context.WithoutCancel(ctx)
	tasks, err := b.source.FindByOwner(ctx, ownerID)
	if err != nil {
		slog.Error("failed to load snapshot for broadcast",
			slog.Int64("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return
	}
	b.Push(ctx, tasks)
}

func (b *Broadcaster) deliver(ctx context.Context, id string, conn Conn, payload []byte) {
	sendCtx, cancel := context.WithTimeout(ctx, b.writeTimeout)
	defer cancel()

	if err := conn.Send(sendCtx, payload); err != nil {
		slog.Warn("live delivery failed",
			slog.String("connection_id", id),
			slog.String("error", err.Error()),
		)
		if b.metrics != nil {
			b.metrics.RecordDeliveryFailure()
		}
		b.registry.unregisterIf(id, conn)
		_ = conn.Close()
	}
}
