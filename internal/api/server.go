package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"craftid/backend/internal/attest"
	"craftid/backend/internal/config"
	"craftid/backend/internal/index"
	"craftid/backend/internal/metrics"
	"craftid/backend/internal/store"
)

// Per-operation bound for store calls made from request handlers. Intake
// never waits on the ledger.
const opTimeout = 4 * time.Second

// CraftStore is the slice of the primary store the handlers need.
type CraftStore interface {
	ExistsByArtName(ctx context.Context, artNameNorm string) (bool, error)
	NextSequence(ctx context.Context, name string) (int64, error)
	Insert(ctx context.Context, c store.CraftID) error
	GetByPublicID(ctx context.Context, publicID string) (*store.CraftID, error)
}

// Enqueuer hands a new record to the anchoring queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, publicID, publicHash string) error
}

// AttSigner signs the intake attestation payload.
type AttSigner interface {
	Sign(p attest.Payload) (string, error)
}

// LedgerView is the read-only ledger lookup used by verification.
type LedgerView interface {
	IsAnchored(ctx context.Context, hashHex string) (bool, uint64, error)
}

type Server struct {
	cfg config.Config
	log *zap.Logger

	Craft   CraftStore
	Queue   Enqueuer
	Signer  AttSigner
	Ledger  LedgerView
	Index   *index.Indexer
	Tokens  TrackingTokens
	Metrics *metrics.Metrics

	// InitDB applies the schema; wired to the migration runner. Idempotent.
	InitDB func(ctx context.Context) error
	// Ping reports primary-store liveness for /health.
	Ping func(ctx context.Context) error

	httpServer *http.Server
}

func New(cfg config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg: cfg,
		log: logger,
		Tokens: TrackingTokens{
			Secret: []byte(cfg.TrackingTokenSecret),
			TTL:    365 * 24 * time.Hour,
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID())
	r.Use(Recoverer(s.log))
	r.Use(AccessLog(s.log))

	if s.cfg.CORSOrigin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{s.cfg.CORSOrigin},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/create", s.handleCreate)
	r.Get("/verify/{public_id}", s.handleVerify)
	r.Get("/verify/qr/{public_id}", s.handleVerifyQR)
	r.Post("/init-db", s.handleInitDB)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.log.Info("http server starting", zap.String("addr", s.cfg.HTTPAddr))
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(ctxShutdown)
	}()

	return s.httpServer.ListenAndServe()
}
