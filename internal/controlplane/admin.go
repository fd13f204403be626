package controlplane

import (
	"encoding/json"
	"net/http"

	"github.com/kenelite/go-accel/internal/config"
	"github.com/kenelite/go-accel/internal/observability"
)

func RegisterAdminHandlers(mux *http.ServeMux, metrics *observability.Metrics, cfg *config.Config, logger *observability.Logger) {
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/config", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(cfg); err != nil {
			logger.Errorw("encode config", "err", err)
		}
	}))
}
