package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// healthCheckTimeout はDB疎通確認の上限時間。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はヘルスチェックで疎通を確認する依存先。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Health はDBへの疎通を確認し、結果を返す。
// GET /health
func Health(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()

			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				status = http.StatusServiceUnavailable
				body["status"] = "unavailable"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}
