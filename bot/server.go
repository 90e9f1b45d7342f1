package bot

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/akramov/fleetpoll/telegram"
)

// Server is the webhook transport mode: Telegram pushes updates to
// /webhook, /set-webhook registers the public address once, and /healthz
// answers deployment probes.
type Server struct {
	bot     *Bot
	client  *telegram.Client
	baseURL string
	log     *zap.Logger
}

func NewServer(b *Bot, client *telegram.Client, baseURL string, log *zap.Logger) *Server {
	return &Server{bot: b, client: client, baseURL: baseURL, log: log}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/set-webhook", s.handleSetWebhook)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type webhookResponse struct {
	OK    bool   `json:"ok"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var up telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&up); err != nil {
		s.log.Warn("webhook decode failed", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, webhookResponse{OK: false, Error: "bad update"})
		return
	}

	if err := s.bot.HandleUpdate(r.Context(), up); err != nil {
		// Non-200 makes Telegram redeliver; completion is idempotent so a
		// retry cannot double-write a row.
		s.log.Error("webhook update failed", zap.Int64("update_id", up.UpdateID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, webhookResponse{OK: false, Error: "update failed"})
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{OK: true})
}

func (s *Server) handleSetWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.baseURL == "" {
		writeJSON(w, http.StatusBadRequest, webhookResponse{OK: false, Error: "server.base_url is not set"})
		return
	}

	url := s.baseURL + "/webhook"
	if err := s.client.SetWebhook(r.Context(), url, true); err != nil {
		s.log.Error("setWebhook failed", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, webhookResponse{OK: false, Error: err.Error()})
		return
	}
	s.log.Info("webhook registered", zap.String("url", url))
	writeJSON(w, http.StatusOK, webhookResponse{OK: true, URL: url})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
