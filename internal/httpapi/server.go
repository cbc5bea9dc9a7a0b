// Package httpapi exposes a session over HTTP: state snapshots, the six game
// actions and a websocket stream of action notifications.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/KyberNetwork/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/tranvictor/epicgame"
)

// Game is the part of *epicgame.Session the API serves.
type Game interface {
	Snapshot() epicgame.Snapshot
	FetchSpecialAttacks(ctx context.Context) ([]epicgame.SpecialAttack, error)
	Connect(ctx context.Context) (common.Address, error)

	Faucet(ctx context.Context) epicgame.ActionResult
	MintCharacterNFT(ctx context.Context, characterIndex *big.Int) epicgame.ActionResult
	AttackBoss(ctx context.Context, attackIndex *big.Int) epicgame.ActionResult
	AttackBossWithSpecialAttack(ctx context.Context, specialAttackIndex *big.Int) epicgame.ActionResult
	ClaimHealth(ctx context.Context) epicgame.ActionResult
	BuySpecialAttack(ctx context.Context, price, specialAttackIndex *big.Int) epicgame.ActionResult
}

type APIServer struct {
	server *http.Server
	game   func() Game
}

type NewAPIServerOptions struct {
	Addr string
	// Game returns the current session. It is called per request because the
	// session is rebuilt when the wallet changes network.
	Game func() Game
	Hub  *Hub
}

// NewAPIServer creates a new http.Server for the game API
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	s := &APIServer{game: opts.Game}

	r := mux.NewRouter()
	r.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/special-attacks", s.handleSpecialAttacks).Methods(http.MethodGet)
	r.HandleFunc("/connect", s.handleConnect).Methods(http.MethodPost)

	actions := r.PathPrefix("/actions").Methods(http.MethodPost).Subrouter()
	actions.HandleFunc("/faucet", s.action(func(ctx context.Context, g Game, _ *http.Request) (epicgame.ActionResult, error) {
		return g.Faucet(ctx), nil
	}))
	actions.HandleFunc("/mint/{index}", s.indexAction(Game.MintCharacterNFT))
	actions.HandleFunc("/attack/{index}", s.indexAction(Game.AttackBoss))
	actions.HandleFunc("/special-attack/{index}", s.indexAction(Game.AttackBossWithSpecialAttack))
	actions.HandleFunc("/claim-health", s.action(func(ctx context.Context, g Game, _ *http.Request) (epicgame.ActionResult, error) {
		return g.ClaimHealth(ctx), nil
	}))
	actions.HandleFunc("/buy-special-attack/{index}", s.action(func(ctx context.Context, g Game, r *http.Request) (epicgame.ActionResult, error) {
		index, err := epicgame.ParseUint256(mux.Vars(r)["index"])
		if err != nil {
			return epicgame.ActionResult{}, err
		}
		price, err := epicgame.ParseUint256(r.URL.Query().Get("price"))
		if err != nil {
			return epicgame.ActionResult{}, fmt.Errorf("price must be a wei amount: %w", err)
		}
		return g.BuySpecialAttack(ctx, price, index), nil
	}))

	if opts.Hub != nil {
		r.Handle("/events", opts.Hub).Methods(http.MethodGet)
	}
	r.Use(corsMiddleware)

	s.server = &http.Server{
		Addr:    opts.Addr,
		Handler: r,
	}
	return s
}

// Handler returns the router, for embedding and tests.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Stop is called.
func (s *APIServer) Start() error {
	logger.WithFields(logger.Fields{
		"addr": s.server.Addr,
	}).Info("API server listening")
	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("API server closed")
			return nil
		}
		return err
	}
	return nil
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) current(w http.ResponseWriter) (Game, bool) {
	g := s.game()
	if g == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no session"))
		return nil, false
	}
	return g, true
}

func (s *APIServer) handleState(w http.ResponseWriter, r *http.Request) {
	g, ok := s.current(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot())
}

func (s *APIServer) handleSpecialAttacks(w http.ResponseWriter, r *http.Request) {
	g, ok := s.current(w)
	if !ok {
		return
	}
	specials, err := g.FetchSpecialAttacks(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, specials)
}

type connectResponse struct {
	Account common.Address `json:"account"`
}

func (s *APIServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	g, ok := s.current(w)
	if !ok {
		return
	}
	account, err := g.Connect(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{Account: account})
}

type actionResponse struct {
	Action   string                `json:"action"`
	Status   epicgame.ActionStatus `json:"status"`
	TxHashes []common.Hash         `json:"txHashes"`
	Error    string                `json:"error,omitempty"`
}

type actionFunc func(ctx context.Context, g Game, r *http.Request) (epicgame.ActionResult, error)

// action runs fn and renders its result. An error from fn is a bad request:
// the action was never started.
func (s *APIServer) action(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, ok := s.current(w)
		if !ok {
			return
		}
		res, err := fn(r.Context(), g, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		resp := actionResponse{
			Action:   res.Action,
			Status:   res.Status,
			TxHashes: res.TxHashes,
		}
		if resp.TxHashes == nil {
			resp.TxHashes = []common.Hash{}
		}
		if res.Err != nil {
			resp.Error = res.Err.Error()
		}
		writeJSON(w, actionStatus(res), resp)
	}
}

func (s *APIServer) indexAction(fn func(Game, context.Context, *big.Int) epicgame.ActionResult) http.HandlerFunc {
	return s.action(func(ctx context.Context, g Game, r *http.Request) (epicgame.ActionResult, error) {
		index, err := epicgame.ParseUint256(mux.Vars(r)["index"])
		if err != nil {
			return epicgame.ActionResult{}, err
		}
		return fn(g, ctx, index), nil
	})
}

// actionStatus maps a result to an HTTP status. A failure caused by a missing
// wallet or account gets the same status the read endpoints use for it.
func actionStatus(res epicgame.ActionResult) int {
	switch res.Status {
	case epicgame.StatusSuccess:
		return http.StatusOK
	case epicgame.StatusBusy:
		return http.StatusConflict
	case epicgame.StatusInsufficientFunds:
		return http.StatusPaymentRequired
	case epicgame.StatusPrecondition:
		return http.StatusPreconditionFailed
	default:
		return errorStatus(res.Err)
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, epicgame.ErrNoWallet):
		return http.StatusServiceUnavailable
	case errors.Is(err, epicgame.ErrNoAccount):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithFields(logger.Fields{
			"error": err,
		}).Warn("Failed to write response")
	}
}
