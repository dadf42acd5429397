package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/dialogue-forge/internal/batch"
	"github.com/jonathan/dialogue-forge/internal/db"
	"github.com/jonathan/dialogue-forge/internal/enrichment"
	"github.com/jonathan/dialogue-forge/internal/types"
)

// StartBatchRequest is the request body for POST /batches
type StartBatchRequest struct {
	Items            []types.WorkItemSpec `json:"items"`
	ConcurrencyLimit int                  `json:"concurrency_limit,omitempty"`
	FailurePolicy    string               `json:"failure_policy,omitempty"`
}

// StartBatchResponse is the response for POST /batches
type StartBatchResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ConversationResponse is the response for GET /conversations/{id}
type ConversationResponse struct {
	*db.ConversationRow
	DownloadURL string `json:"download_url,omitempty"`
}

const downloadURLTTL = 15 * time.Minute

func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	var req StartBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "items is required")
		return
	}

	policy := types.FailurePolicy(req.FailurePolicy)
	switch policy {
	case "":
		policy = types.FailureContinue
	case types.FailureContinue, types.FailureStop:
	default:
		s.errorResponse(w, http.StatusBadRequest, "failure_policy must be continue or stop")
		return
	}

	jobID, err := s.batches.StartBatch(r.Context(), req.Items, req.ConcurrencyLimit, policy)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusAccepted, StartBatchResponse{
		JobID:  jobID.String(),
		Status: string(types.BatchProcessing),
	})
}

func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid job id")
		return
	}

	progress, err := s.batches.GetBatchStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, batch.ErrJobNotFound) {
			s.errorResponse(w, http.StatusNotFound, "batch job not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, progress)
}

func (s *Server) handleBatchItems(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid job id")
		return
	}

	items, err := s.store.ListWorkItems(r.Context(), jobID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, items)
}

func (s *Server) handlePauseBatch(w http.ResponseWriter, r *http.Request) {
	s.batchLifecycleOp(w, r, s.batches.PauseBatch, types.BatchPaused)
}

func (s *Server) handleResumeBatch(w http.ResponseWriter, r *http.Request) {
	s.batchLifecycleOp(w, r, s.batches.ResumeBatch, types.BatchProcessing)
}

func (s *Server) handleCancelBatch(w http.ResponseWriter, r *http.Request) {
	s.batchLifecycleOp(w, r, s.batches.CancelBatch, types.BatchCancelled)
}

func (s *Server) batchLifecycleOp(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) error, resulting types.BatchStatus) {
	jobID, err := pathID(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid job id")
		return
	}

	if err := op(r.Context(), jobID); err != nil {
		if errors.Is(err, batch.ErrJobNotRunning) {
			s.errorResponse(w, http.StatusConflict, "batch job is not running")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"job_id": jobID.String(),
		"status": string(resulting),
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	row, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if row == nil {
		s.errorResponse(w, http.StatusNotFound, "conversation not found")
		return
	}

	resp := ConversationResponse{ConversationRow: row}
	if row.FinalBlobKey != nil {
		url, err := s.blobs.PresignDownload(r.Context(), *row.FinalBlobKey, downloadURLTTL)
		if err != nil {
			s.logger.Warn("failed to presign download URL")
		} else {
			resp.DownloadURL = url
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleConversationFailures(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	row, err := s.store.GetConversation(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if row == nil {
		s.errorResponse(w, http.StatusNotFound, "conversation not found")
		return
	}

	records, err := s.store.ListFailedGenerations(r.Context(), row.WorkItemID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, records)
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	s.enrichmentOp(w, r, s.enrichment.Run)
}

func (s *Server) handleRetryEnrich(w http.ResponseWriter, r *http.Request) {
	s.enrichmentOp(w, r, s.enrichment.Retry)
}

func (s *Server) enrichmentOp(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID) (*types.EnrichmentResult, error)) {
	id, err := pathID(r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	result, err := op(r.Context(), id)
	if err != nil {
		if errors.Is(err, enrichment.ErrConversationNotFound) {
			s.errorResponse(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// decodeJSON decodes a request body, rejecting unknown fields
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
