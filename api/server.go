package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"vote-program/executor"
	"vote-program/ledger"
	"vote-program/models"
)

// maxTransactionBytes caps a submitted transaction body. A signed
// initialize with two signatures is well under 1 KiB.
const maxTransactionBytes = 4 << 10

// Submitter accepts transactions for execution.
type Submitter interface {
	Submit(ctx context.Context, tx *models.Transaction) (*models.Receipt, error)
}

// AccountReader loads decoded vote accounts.
type AccountReader interface {
	Load(ctx context.Context, addr common.Address) (models.VoteAccount, error)
	Layout() models.Layout
}

type Server struct {
	submitter Submitter
	accounts  AccountReader
	ledger    *ledger.Ledger
	metrics   *executor.Metrics
	logger    zerolog.Logger
}

type BlockInfo struct {
	Index      uint64           `json:"index"`
	Timestamp  int64            `json:"timestamp"`
	Hash       string           `json:"hash"`
	PrevHash   string           `json:"prev_hash"`
	Nonce      uint64           `json:"nonce"`
	Difficulty uint8            `json:"difficulty"`
	Receipts   []models.Receipt `json:"receipts"`
}

type LedgerResponse struct {
	Length   int              `json:"length"`
	IsValid  bool             `json:"is_valid"`
	LastHash string           `json:"last_hash"`
	Pending  []models.Receipt `json:"pending"`
	Blocks   []BlockInfo      `json:"blocks"`
}

type ValidationResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func NewServer(submitter Submitter, accounts AccountReader, l *ledger.Ledger, metrics *executor.Metrics, logger zerolog.Logger) *Server {
	return &Server{
		submitter: submitter,
		accounts:  accounts,
		ledger:    l,
		metrics:   metrics,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/transactions", s.handleSubmitTransaction)
		r.Get("/accounts/{address}", s.handleGetAccount)
		r.Get("/ledger", s.handleGetLedger)
		r.Get("/ledger/blocks/{index}", s.handleGetBlock)
		r.Get("/ledger/validate", s.handleValidateLedger)
		r.Get("/metrics", s.handleGetMetrics)
		r.Post("/metrics/reset", s.handleResetMetrics)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"layout": string(s.accounts.Layout()),
	})
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxTransactionBytes)

	var tx models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "transaction body too large"})
			return
		}
		writeError(w, errors.Wrap(models.ErrInvalidTransaction, "invalid request body"), nil)
		return
	}

	receipt, err := s.submitter.Submit(r.Context(), &tx)
	if err != nil {
		writeError(w, err, receipt)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid account address"})
		return
	}
	addr := common.HexToAddress(raw)

	acc, err := s.accounts.Load(r.Context(), addr)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, models.NewAccountView(addr, s.accounts.Layout(), acc))
}

func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	blocks := s.ledger.Blocks()
	response := LedgerResponse{
		Length:  len(blocks),
		IsValid: models.ValidateChain(blocks),
		Pending: s.ledger.Pending(),
		Blocks:  make([]BlockInfo, 0, len(blocks)),
	}
	if len(blocks) > 0 {
		response.LastHash = hex.EncodeToString(blocks[len(blocks)-1].Hash)
	}
	for _, block := range blocks {
		info, err := blockInfo(block)
		if err != nil {
			writeError(w, err, nil)
			return
		}
		response.Blocks = append(response.Blocks, info)
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid block index"})
		return
	}
	block, err := s.ledger.Block(index)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	info, err := blockInfo(block)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleValidateLedger(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Validate(); err != nil {
		writeJSON(w, http.StatusOK, ValidationResponse{Valid: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ValidationResponse{Valid: true})
}

func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleResetMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.Reset()
	s.logger.Info().Msg("metrics reset")
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func blockInfo(block *models.Block) (BlockInfo, error) {
	receipts, err := ledger.DecodeReceipts(block)
	if err != nil {
		return BlockInfo{}, err
	}
	return BlockInfo{
		Index:      block.Index,
		Timestamp:  block.Timestamp,
		Hash:       hex.EncodeToString(block.Hash),
		PrevHash:   hex.EncodeToString(block.PrevHash),
		Nonce:      block.Nonce,
		Difficulty: block.Difficulty,
		Receipts:   receipts,
	}, nil
}
