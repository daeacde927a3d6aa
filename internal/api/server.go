// Package api is the thin read-API adapter: HTTP handlers translating query
// params into Store calls, over the gorilla/mux router the rest of this
// fleet standardizes on.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"bento-indexer/internal/apperr"
	"bento-indexer/internal/client"
	"bento-indexer/internal/store"
)

// Server is the read-API HTTP server.
type Server struct {
	store    store.Store
	provider client.BlockProvider
	log      *zap.Logger
	http     *http.Server
}

// NewServer builds a Server listening on addr (e.g. "0.0.0.0:8080").
func NewServer(s store.Store, provider client.BlockProvider, addr string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &Server{store: s, provider: provider, log: log}

	router := mux.NewRouter()
	router.HandleFunc("/health", srv.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/swagger-ui", srv.handleSwagger).Methods(http.MethodGet)
	router.HandleFunc("/blocks", srv.handleListBlocks).Methods(http.MethodGet)
	router.HandleFunc("/blocks/{hash}", srv.handleGetBlock).Methods(http.MethodGet)
	router.HandleFunc("/blocks/{hash}/transactions", srv.handleBlockTransactions).Methods(http.MethodGet)
	router.HandleFunc("/transactions/{hash}", srv.handleGetTransaction).Methods(http.MethodGet)
	router.HandleFunc("/transactions/{tx_id}/events", srv.handleTxEvents).Methods(http.MethodGet)
	router.HandleFunc("/events", srv.handleEventsByContract).Methods(http.MethodGet)

	srv.http = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return srv
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	s.log.Info("read-API listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err per the read-API's keyword-based mapping and
// writes the {success:false, error:{message, code}} envelope.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperr.StatusCode(err), apperr.ToBody(err))
}

type successBody struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, successBody{Success: true, Data: data})
}

// handleHealth compares the node's tip height to the store's latest block
// height for shard pair (0,0); unhealthy when the lag exceeds 3 blocks or the
// store has no blocks at all.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	latest, ok, err := s.store.LatestBlock(ctx, 0, 0)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindDatabase, "failed to read latest block", err))
		return
	}
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"healthy": false,
			"reason":  "store has no blocks",
		})
		return
	}

	info, err := s.provider.ChainInfo(ctx, 0, 0)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"healthy": false,
			"reason":  "node unreachable",
		})
		return
	}

	lag := info.CurrentHeight - latest.Height
	healthy := lag <= 3
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"healthy":      healthy,
		"local_height": latest.Height,
		"node_height":  info.CurrentHeight,
		"lag":          lag,
	})
}

// handleSwagger serves a minimal, hand-written API descriptor rather than a
// live-reflected OpenAPI document — there is no OpenAPI-generation library
// in this stack to reflect routes through.
func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"openapi": "3.0.0",
		"info":    map[string]string{"title": "bento-indexer read API", "version": "1"},
		"paths": []string{
			"/health", "/blocks", "/blocks/{hash}", "/blocks/{hash}/transactions",
			"/transactions/{hash}", "/transactions/{tx_id}/events", "/events",
		},
	})
}

func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r)
	desc := parseOrderDesc(r)
	blocks, err := s.store.ListBlocks(r.Context(), limit, offset, desc)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindDatabase, "failed to list blocks", err))
		return
	}
	writeData(w, blocks)
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]
	block, ok, err := s.store.BlockByHash(r.Context(), hash)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindDatabase, "failed to read block", err))
		return
	}
	if !ok {
		writeError(w, apperr.NotFound("block", hash))
		return
	}
	writeData(w, block)
}

func (s *Server) handleBlockTransactions(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]
	limit, offset := parseLimitOffset(r)
	txs, err := s.store.TransactionsByBlockHash(r.Context(), hash, limit, offset)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindDatabase, "failed to list block transactions", err))
		return
	}
	writeData(w, txs)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]
	tx, ok, err := s.store.TransactionByHash(r.Context(), hash)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindDatabase, "failed to read transaction", err))
		return
	}
	if !ok {
		writeError(w, apperr.NotFound("transaction", hash))
		return
	}
	writeData(w, tx)
}

func (s *Server) handleTxEvents(w http.ResponseWriter, r *http.Request) {
	txID := mux.Vars(r)["tx_id"]
	limit, offset := parseLimitOffset(r)
	events, err := s.store.EventsByTxID(r.Context(), txID, limit, offset)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindDatabase, "failed to list transaction events", err))
		return
	}
	writeData(w, events)
}

func (s *Server) handleEventsByContract(w http.ResponseWriter, r *http.Request) {
	contract := r.URL.Query().Get("contract_address")
	if contract == "" {
		writeError(w, apperr.New(apperr.KindValidation, "validation: contract_address is required"))
		return
	}
	limit, offset := parseLimitOffset(r)
	events, err := s.store.EventsByContract(r.Context(), contract, limit, offset)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindDatabase, "failed to list events by contract", err))
		return
	}
	writeData(w, events)
}
