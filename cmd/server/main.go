// Command server runs the chat HTTP API: a single process wiring the
// router, the three sub-agent graphs, the SQL-backed store, and the
// vector/embedding stack behind /chat, /chat/stream, and /metrics,
// grounded on the teacher's pkg/server/http.go graceful-shutdown
// lifecycle (http.Server run in a goroutine, select on its error channel
// vs context cancellation, bounded Shutdown).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/duhu110/axiom/pkg/agent"
	"github.com/duhu110/axiom/pkg/config"
	"github.com/duhu110/axiom/pkg/embedding"
	"github.com/duhu110/axiom/pkg/errs"
	"github.com/duhu110/axiom/pkg/llm"
	"github.com/duhu110/axiom/pkg/logger"
	"github.com/duhu110/axiom/pkg/model"
	"github.com/duhu110/axiom/pkg/observability"
	"github.com/duhu110/axiom/pkg/orchestrator"
	"github.com/duhu110/axiom/pkg/router"
	"github.com/duhu110/axiom/pkg/store"
	"github.com/duhu110/axiom/pkg/stream"
	"github.com/duhu110/axiom/pkg/usage"
	"github.com/duhu110/axiom/pkg/vector"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log level:", err)
		os.Exit(1)
	}
	logger.Init(level, os.Stdout, cfg.Log.Format)
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, store.Dialect(cfg.Store.Driver), cfg.Store.DSN)
	if err != nil {
		log.Error("open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	embedFactory := embedding.NewOpenAIFactory(embedding.OpenAIConfig{
		BaseURL: cfg.Embedding.BaseURL,
		APIKey:  cfg.Embedding.APIKey,
	})
	embedSvc := embedding.NewService(embedFactory, cfg.Embedding.MaxConcurrency)
	defer embedSvc.Close()

	vectorProvider, err := vector.NewProvider(&cfg.Vector)
	if err != nil {
		log.Error("build vector provider", "error", err)
		os.Exit(1)
	}
	vectorStore := vector.NewStore(vectorProvider, "documents", embedSvc.Bind(cfg.Embedding.Model))

	answerLLM := llm.NewOpenAIProvider(llm.OpenAIConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})

	routerModel := cfg.LLM.Model
	if cfg.Router.Model != "" {
		routerModel = cfg.Router.Model
	}
	routerLLM := llm.NewOpenAIProvider(llm.OpenAIConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   routerModel,
	})

	qaAgent, err := agent.NewQAAgent(answerLLM, db)
	if err != nil {
		log.Error("build qa agent", "error", err)
		os.Exit(1)
	}
	ragAgent := agent.NewRAGAgent(answerLLM, vectorStore, db)
	sqlAgent := agent.NewSQLAgent()

	qaGraph, err := qaAgent.Compile()
	if err != nil {
		log.Error("compile qa graph", "error", err)
		os.Exit(1)
	}
	ragGraph, err := ragAgent.Compile()
	if err != nil {
		log.Error("compile rag graph", "error", err)
		os.Exit(1)
	}
	sqlGraph, err := sqlAgent.Compile()
	if err != nil {
		log.Error("compile sql graph", "error", err)
		os.Exit(1)
	}

	classifier := router.New(routerLLM, db)
	routerGraph := router.NewGraph(classifier, qaGraph, ragGraph, sqlGraph)

	usageRecorder := usage.NewRecorder(db)
	svc := orchestrator.NewService(routerGraph, db, usageRecorder, cfg.LLM.Model, log)

	metrics := observability.NewMetrics(cfg.Metrics)
	tracerProvider, err := observability.InitGlobalTracer(ctx, cfg.Tracing)
	if err != nil {
		log.Error("init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if shutdowner, ok := tracerProvider.(interface {
			Shutdown(context.Context) error
		}); ok {
			_ = shutdowner.Shutdown(context.Background())
		}
	}()

	h := newHandlers(svc, db, usageRecorder, metrics, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Post("/chat", h.chat)
	r.Post("/chat/stream", h.chatStream)
	r.Post("/kb/{kb_id}/documents", h.uploadDocument)
	r.Get("/usage", h.usage)
	r.Get("/healthz", h.healthz)
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown", "error", err)
		}
	}
}

// chatRequest is the wire shape of /chat and /chat/stream, mirroring
// schemas.py's ChatRequest.
type chatRequest struct {
	Query     string                    `json:"query"`
	History   []orchestrator.ChatMessage `json:"history"`
	SessionID string                    `json:"session_id"`
	UserID    string                    `json:"user_id"`
	KBID      string                    `json:"kb_id"`
}

type handlers struct {
	svc     *orchestrator.Service
	docs    *store.Store
	usageRecorder *usage.Recorder
	metrics *observability.Metrics
	log     *slog.Logger
}

func newHandlers(svc *orchestrator.Service, docs *store.Store, usageRecorder *usage.Recorder, metrics *observability.Metrics, log *slog.Logger) *handlers {
	return &handlers{svc: svc, docs: docs, usageRecorder: usageRecorder, metrics: metrics, log: log}
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body", err))
		return
	}

	answer, err := h.svc.Chat(r.Context(), req.Query, req.History, req.SessionID)
	if err != nil {
		h.metrics.ObserveChatError(errs.KindOf(err).String())
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"answer": answer})
}

func (h *handlers) chatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body", err))
		return
	}

	sw, err := stream.NewWriter(w)
	if err != nil {
		writeError(w, errs.New(errs.Internal, "response does not support streaming", err))
		return
	}

	for event, err := range h.svc.ChatStream(r.Context(), req.Query, req.History, req.SessionID, req.UserID, req.KBID) {
		if err != nil {
			h.log.Error("chat stream", "error", err)
			return
		}
		if err := sw.WriteEvent(event); err != nil {
			h.log.Error("write stream event", "error", err)
			return
		}
	}
}

// uploadDocumentRequest is the wire shape of POST /kb/{kb_id}/documents:
// an upload descriptor pointing at an already-stored blob, per
// SPEC_FULL.md §4.12 (object storage itself stays out of scope).
type uploadDocumentRequest struct {
	Title    string `json:"title"`
	FileKey  string `json:"file_key"`
	FileType string `json:"file_type"`
	ByteSize int64  `json:"byte_size"`
}

func (h *handlers) uploadDocument(w http.ResponseWriter, r *http.Request) {
	kbID := chi.URLParam(r, "kb_id")

	kb, err := h.docs.GetKB(r.Context(), kbID)
	if err != nil {
		writeError(w, errs.New(errs.Internal, "load knowledge base", err))
		return
	}
	if kb == nil {
		writeError(w, errs.New(errs.NotFound, "knowledge base not found", nil))
		return
	}

	var req uploadDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.New(errs.Validation, "malformed request body", err))
		return
	}

	doc, err := h.docs.CreateDocument(r.Context(), model.KBDocument{
		KBID:     kbID,
		Title:    req.Title,
		FileKey:  req.FileKey,
		FileType: req.FileType,
		ByteSize: req.ByteSize,
	})
	if err != nil {
		writeError(w, errs.New(errs.Internal, "create document", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(doc)
}

func (h *handlers) usage(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, errs.New(errs.Validation, "user_id query parameter is required", nil))
		return
	}

	records, total, err := h.usageRecorder.List(r.Context(), userID, nil, nil, nil, 0, 100)
	if err != nil {
		writeError(w, errs.New(errs.Internal, "list usage", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"records": records, "total": total})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.Validation:
		status = http.StatusBadRequest
	case errs.NotFound:
		status = http.StatusNotFound
	case errs.PermissionDenied:
		status = http.StatusForbidden
	case errs.UpstreamTransient, errs.UpstreamPermanent:
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "kind": errs.KindOf(err).String()})
}
