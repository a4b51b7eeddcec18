package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/xtding233/gacha-economy/internal/certify"
	"github.com/xtding233/gacha-economy/internal/constants"
	"github.com/xtding233/gacha-economy/internal/ledger"
	"github.com/xtding233/gacha-economy/internal/metrics"
	"github.com/xtding233/gacha-economy/internal/middleware"
	"github.com/xtding233/gacha-economy/internal/pricing"
	"github.com/xtding233/gacha-economy/internal/pull"
)

const maxBodyBytes = 1 << 20

// BannerLister enumerates configured banner scopes.
type BannerLister interface {
	ScopeIDs(ctx context.Context) ([]string, error)
}

// Certifications reports the latest certification verdicts.
type Certifications interface {
	Last() []certify.Verdict
}

type Deps struct {
	Pulls   *pull.Service
	Ledger  *ledger.Ledger
	Banners BannerLister
	Catalog pricing.Catalog
	Payer   ledger.Payer
	Certs   Certifications // optional
	DB      *sql.DB        // optional, pinged by /health
	Logger  zerolog.Logger
}

// Server is the JSON adapter over the pull service and the ledger.
type Server struct {
	pulls     *pull.Service
	ledger    *ledger.Ledger
	banners   BannerLister
	catalog   pricing.Catalog
	payer     ledger.Payer
	certs     Certifications
	db        *sql.DB
	logger    zerolog.Logger
	startTime time.Time
}

func NewServer(d Deps) *Server {
	if d.Payer == nil {
		d.Payer = ledger.SandboxPayer{}
	}
	return &Server{
		pulls:     d.Pulls,
		ledger:    d.Ledger,
		banners:   d.Banners,
		catalog:   d.Catalog,
		payer:     d.Payer,
		certs:     d.Certs,
		db:        d.DB,
		logger:    d.Logger.With().Str("component", "http").Logger(),
		startTime: time.Now(),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(constants.RequestTimeout))

		r.Get("/banners", s.handleListBanners)
		r.Post("/pulls", s.handlePull)
		r.Get("/pity/{player}/{scope}", s.handlePity)
		r.Post("/simulate", s.handleSimulate)
		r.Get("/certifications", s.handleCertifications)
		r.Get("/history/{player}", s.handleHistory)

		r.Get("/balance/{player}/{currency}", s.handleBalance)
		r.Get("/transactions/{player}", s.handleTransactions)
		r.Post("/refunds/{txID}", s.handleRefund)
		r.Get("/packs", s.handleListPacks)
		r.Post("/purchases", s.handlePurchase)
	})

	return r
}

type healthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Database string `json:"database,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Uptime: time.Since(s.startTime).Round(time.Second).String()}
	status := http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), constants.DatabaseTimeout)
		defer cancel()
		resp.Database = "ok"
		if err := s.db.PingContext(ctx); err != nil {
			resp.Status, resp.Database = "unhealthy", err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
