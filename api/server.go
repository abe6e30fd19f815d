// Package api serves balances, stake accounts, derived addresses and poller
// state over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"k8s.io/klog/v2"

	"ore-boost-cli/config"
	"ore-boost-cli/derive"
	"ore-boost-cli/metrics"
	"ore-boost-cli/poller"
	"ore-boost-cli/rewards"
	ore_protocol "ore-boost-cli/solana"
)

type Ledger interface {
	GetBalance(ctx context.Context, address solana.PublicKey) (uint64, error)
	GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (ore_protocol.TokenAmount, error)
}

type Rewards interface {
	StakeAccounts(ctx context.Context, staker solana.PublicKey) ([]rewards.StakeAccount, error)
}

// View is the polled state exposed by the snapshot and window routes.
type View interface {
	Snapshot() poller.Snapshot
	Window() poller.WindowState
}

// APIResponse is the body of every error response.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

var metricRequests = metrics.LazyLoadHistogramVec("api_request_ms", []string{"route", "code"}, metrics.BucketRequestMillis)

type Server struct {
	cfg     config.Config
	deriver *derive.Deriver
	ledger  Ledger
	rewards Rewards
	view    View
	router  *mux.Router
}

// New builds the router. A nil view disables the snapshot and window routes.
func New(cfg config.Config, deriver *derive.Deriver, ledger Ledger, rw Rewards, view View) *Server {
	s := &Server{
		cfg:     cfg.Clone(),
		deriver: deriver,
		ledger:  ledger,
		rewards: rw,
		view:    view,
		router:  mux.NewRouter(),
	}

	r := s.router
	r.Use(corsMiddleware, metricsMiddleware)
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/balances/{owner}", s.handleBalances).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/balance", s.handleBalance).Methods(http.MethodPost, http.MethodOptions)
	v1.HandleFunc("/stake-accounts/{owner}", s.handleStakeAccounts).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/addresses/{staker}/{mint}", s.handleAddresses).Methods(http.MethodGet, http.MethodOptions)
	if view != nil {
		v1.HandleFunc("/snapshot", s.handleSnapshot).Methods(http.MethodGet, http.MethodOptions)
		v1.HandleFunc("/window", s.handleWindow).Methods(http.MethodGet, http.MethodOptions)
	}
	if h := metrics.HTTPHandler(); h != nil {
		r.Handle("/metrics", h).Methods(http.MethodGet)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("API server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		metricRequests().ObserveWithLabels(time.Since(start).Milliseconds(), map[string]string{
			"route": route,
			"code":  strconv.Itoa(rec.code),
		})
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Warningf("failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(APIResponse{Status: "error", Message: message})
}

func pathKey(w http.ResponseWriter, r *http.Request, name string) (solana.PublicKey, bool) {
	key, err := solana.PublicKeyFromBase58(mux.Vars(r)[name])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+" address")
		return solana.PublicKey{}, false
	}
	return key, true
}
