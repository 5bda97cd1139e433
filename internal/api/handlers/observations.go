package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wonny/sectorpulse/internal/contracts"
	"github.com/wonny/sectorpulse/internal/ingest"
	"github.com/wonny/sectorpulse/pkg/logger"
)

// ObservationHandler accepts vendor observation batches into the intake
// buffer. The rollup jobs drain the buffer on their own cadence; this
// endpoint never blocks on aggregation.
type ObservationHandler struct {
	intake *ingest.Intake
	maxObs int
	logger *logger.Logger
}

// NewObservationHandler creates a new observation intake handler
func NewObservationHandler(intake *ingest.Intake, maxObs int, log *logger.Logger) *ObservationHandler {
	return &ObservationHandler{
		intake: intake,
		maxObs: maxObs,
		logger: log,
	}
}

// AcceptResponse reports what the intake did with the batch
type AcceptResponse struct {
	Status       string `json:"status"`
	BatchID      string `json:"batch_id"`
	Timeframe    string `json:"timeframe"`
	Observations int    `json:"observations"`
}

// Accept ingests one observation batch
// POST /api/observations
func (h *ObservationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var batch contracts.ObservationBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if h.maxObs > 0 && len(batch.Observations) > h.maxObs {
		respondError(w, http.StatusRequestEntityTooLarge, "Batch exceeds observation limit")
		return
	}

	// Envelope validation lives in the intake, which also assigns a
	// batch id when the adapter omitted one
	if err := h.intake.Accept(&batch); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.WithFields(map[string]interface{}{
		"batch_id":     batch.BatchID,
		"timeframe":    string(batch.Timeframe),
		"observations": len(batch.Observations),
	}).Info("Observation batch accepted")

	respondJSON(w, http.StatusAccepted, AcceptResponse{
		Status:       "accepted",
		BatchID:      batch.BatchID,
		Timeframe:    string(batch.Timeframe),
		Observations: len(batch.Observations),
	})
}

// Pending reports buffered observation counts per timeframe
// GET /api/observations/pending
func (h *ObservationHandler) Pending(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.intake.Pending())
}
