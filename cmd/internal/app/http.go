package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"agrimitra/cmd/internal/advisory"
	authapi "agrimitra/cmd/internal/auth/api"
	"agrimitra/cmd/internal/chat"
	"agrimitra/cmd/internal/forum"
	"agrimitra/cmd/internal/metrics"
	"agrimitra/cmd/internal/translate"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	dbPool *pgxpool.Pool,
	dbEnabled bool,
	auth *authapi.Handler,
	forumH *forum.Handler,
	advisoryH *advisory.Handler,
	translateH *translate.Handler,
	chatGW *chat.Gateway,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && !dbEnabled {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if dbEnabled && dbPool != nil {
			if err := PingDB(r.Context(), dbPool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("/metrics", metrics.Handler())

	if auth != nil {
		auth.Register(mux)
	}
	if forumH != nil {
		forumH.Register(mux)
	}
	if advisoryH != nil {
		advisoryH.Register(mux)
	}
	if translateH != nil {
		translateH.Register(mux)
	}
	if chatGW != nil {
		mux.HandleFunc("/ws/chat", chatGW.HandleWS)
	}
}
