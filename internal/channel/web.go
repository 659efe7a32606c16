package channel

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"scamtrap/internal/domain"
	"scamtrap/internal/engage"
	"scamtrap/internal/metrics"
)

// WebConfig configures the HTTP gateway.
type WebConfig struct {
	Host   string
	Port   int
	APIKey string // required on /analyze-message when set
	Logger *slog.Logger
}

// MessageHandler is the slice of the engagement engine the gateway needs.
type MessageHandler interface {
	HandleInbound(ctx context.Context, sessionID string, msg domain.Message, history []domain.Message) engage.Result
}

// Web exposes the honeypot over HTTP. A platform integration posts each
// suspected scam message to /analyze-message and relays the reply back to
// the counterparty.
type Web struct {
	host    string
	port    int
	apiKey  string
	handler MessageHandler
	store   domain.ConversationStore
	logger  *slog.Logger
	server  *http.Server
}

// analyzeRequest is the expected JSON body for /analyze-message.
type analyzeRequest struct {
	SessionID string `json:"sessionId"`
	Message   struct {
		Sender    string `json:"sender"`
		Text      string `json:"text"`
		Timestamp string `json:"timestamp"`
	} `json:"message"`
	ConversationHistory []struct {
		Sender    string `json:"sender"`
		Text      string `json:"text"`
		Timestamp string `json:"timestamp"`
	} `json:"conversationHistory"`
	Metadata map[string]any `json:"metadata"`
}

func NewWeb(cfg WebConfig, handler MessageHandler, store domain.ConversationStore) *Web {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Web{
		host:    cfg.Host,
		port:    cfg.Port,
		apiKey:  cfg.APIKey,
		handler: handler,
		store:   store,
		logger:  cfg.Logger,
	}
}

func (w *Web) Name() string { return "web" }

// Start runs the gateway until ctx is cancelled.
func (w *Web) Start(ctx context.Context) error {
	w.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", w.host, w.port),
		Handler:           w.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	w.logger.Info("gateway starting", "addr", w.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		w.logger.Info("gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return w.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("gateway server: %w", err)
	}
}

// Routes builds the gateway mux.
func (w *Web) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", w.handleHealth)
	mux.HandleFunc("/analyze-message", w.handleAnalyze)
	mux.HandleFunc("/sessions", w.handleSessions)
	mux.Handle("/metrics", metrics.Default.Handler())
	return mux
}

func (w *Web) handleHealth(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(rw, r)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "scamtrap",
	})
}

func (w *Web) handleAnalyze(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if !w.authorized(r) {
		writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "invalid API key"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(rw, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req analyzeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Message.Text == "" {
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "message.text is required"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	inbound := domain.Message{
		Sender:    domain.SenderScammer,
		Text:      req.Message.Text,
		Timestamp: req.Message.Timestamp,
	}
	if inbound.Timestamp == "" {
		inbound.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	history := make([]domain.Message, 0, len(req.ConversationHistory))
	for _, m := range req.ConversationHistory {
		history = append(history, domain.Message{
			Sender:    domain.Sender(m.Sender),
			Text:      m.Text,
			Timestamp: m.Timestamp,
		})
	}

	w.logger.Info("message received",
		"session", sessionID,
		"history_len", len(history),
		"text_len", len(req.Message.Text),
	)

	res := w.handler.HandleInbound(r.Context(), sessionID, inbound, history)

	writeJSON(rw, http.StatusOK, map[string]string{
		"status":    res.Status,
		"sessionId": sessionID,
		"reply":     res.Reply,
	})
}

func (w *Web) handleSessions(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if !w.authorized(r) {
		writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "invalid API key"})
		return
	}
	if w.store == nil {
		writeJSON(rw, http.StatusOK, []domain.SessionRecord{})
		return
	}

	sessions, err := w.store.ListSessions(r.Context(), 100)
	if err != nil {
		w.logger.Error("cannot list sessions", "err", err)
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
		return
	}
	if sessions == nil {
		sessions = []domain.SessionRecord{}
	}
	writeJSON(rw, http.StatusOK, sessions)
}

// authorized checks the X-API-Key header with a constant-time compare.
// An empty configured key disables the check.
func (w *Web) authorized(r *http.Request) bool {
	if w.apiKey == "" {
		return true
	}
	got := r.Header.Get("X-API-Key")
	return subtle.ConstantTimeCompare([]byte(got), []byte(w.apiKey)) == 1
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
