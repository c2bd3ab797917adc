package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/liamcoop/docrules/internal/logger"
	"github.com/liamcoop/docrules/rules"
	"github.com/liamcoop/docrules/transaction"
)

const maxBodyBytes = 1 << 20

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "unhealthy",
				Error:  err.Error(),
			})
			return
		}
	}

	names, err := s.engine.Store().List(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Error:  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Schemas: len(names),
	})
}

// Metrics handler
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	resp := MetricsResponse{Counters: logger.Snapshot()}
	if s.cache != nil {
		hits, misses := s.cache.Stats()
		resp.Cache = &CacheMetrics{
			Entries: s.cache.Len(),
			Hits:    hits,
			Misses:  misses,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// List schemas handler
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	names, err := s.engine.Store().List(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, SchemasListResponse{Schemas: names})
}

// Get schema handler
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := s.engine.LoadSchema(r.Context(),
		chi.URLParam(r, "transactionType"),
		chi.URLParam(r, "ownershipStatus"),
	)

	var notFound *rules.SchemaNotFoundError
	if errors.As(err, &notFound) {
		respondError(w, http.StatusNotFound, "schema not found", err)
		return
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, schema)
}

// Evaluation handler
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Answers == nil {
		req.Answers = rules.AnswerSet{}
	}

	logger.EvaluationRequests.Add(1)
	eval, err := s.engine.Evaluate(r.Context(), req.TransactionType, req.OwnershipStatus, req.Answers)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newEvaluationResponse(eval))
}

// Create transaction handler
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if !s.decode(w, r, &req) {
		return
	}

	tx, err := s.service.Create(r.Context(), transaction.CreateParams{
		TenantID:        chi.URLParam(r, "tenantId"),
		TransactionType: req.TransactionType,
		OwnershipStatus: req.OwnershipStatus,
		PropertyAddress: req.PropertyAddress,
		Answers:         req.Answers,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

// List transactions handler
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.List(r.Context(), chi.URLParam(r, "tenantId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, TransactionsListResponse{Transactions: list})
}

// Get transaction handler
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.service.Get(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "transactionId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

// Submit answers handler
func (s *Server) handleSubmitAnswers(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnswersRequest
	if !s.decode(w, r, &req) {
		return
	}

	logger.EvaluationRequests.Add(1)
	tx, eval, err := s.service.SubmitAnswers(r.Context(),
		chi.URLParam(r, "tenantId"),
		chi.URLParam(r, "transactionId"),
		req.Answers,
		req.Replace,
	)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, SubmitAnswersResponse{
		Transaction: tx,
		Evaluation:  newEvaluationResponse(eval),
	})
}

// Preview handler
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	eval, err := s.service.Preview(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "transactionId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newEvaluationResponse(eval))
}

// Generate package handler
func (s *Server) handleGeneratePackage(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.GeneratePackage(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "transactionId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if len(result.Added) > 0 {
		status = http.StatusCreated
	}
	respondJSON(w, status, PackageResponse{
		Transaction: result.Transaction,
		Added:       result.Added,
		Existing:    result.Existing,
	})
}

// List documents handler
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.service.Documents(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "transactionId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, DocumentsListResponse{Documents: docs})
}

// decode reads a JSON body into dst and validates it, writing a 400 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

// respondServiceError maps workflow and schema errors to HTTP responses
func respondServiceError(w http.ResponseWriter, err error) {
	var (
		incomplete *transaction.IncompleteError
		notFound   *rules.SchemaNotFoundError
		validation *rules.SchemaValidationError
		syntax     *rules.ConditionSyntaxError
	)

	switch {
	case errors.As(err, &incomplete):
		respondJSON(w, http.StatusConflict, IncompleteResponse{
			Error:   "questionnaire incomplete",
			Missing: incomplete.Missing,
		})
	case errors.Is(err, transaction.ErrNotFound):
		respondError(w, http.StatusNotFound, "transaction not found", nil)
	case errors.As(err, &notFound):
		respondError(w, http.StatusUnprocessableEntity, "unsupported transaction configuration", err)
	case errors.Is(err, rules.ErrInvalidSchemaKey), errors.Is(err, transaction.ErrInvalidParams):
		respondError(w, http.StatusBadRequest, "invalid request", err)
	case errors.As(err, &validation):
		respondJSON(w, http.StatusInternalServerError, SchemaErrorResponse{
			Error:      "schema failed validation",
			Schema:     validation.Schema,
			Violations: validation.Violations,
		})
	case errors.As(err, &syntax):
		offset := syntax.Offset
		respondJSON(w, http.StatusInternalServerError, SchemaErrorResponse{
			Error:     "document rule condition failed to parse",
			Condition: syntax.Expression,
			Offset:    &offset,
			Fragment:  syntax.Fragment,
		})
	default:
		logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Debug("failed to write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

