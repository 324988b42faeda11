package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"craftid/backend/internal/canonical"
	"craftid/backend/internal/store"
)

type verifyResponse struct {
	PublicID            string         `json:"public_id"`
	Status              string         `json:"status"`
	StoredHash          string         `json:"stored_hash"`
	ComputedHash        string         `json:"computed_hash"`
	IsTampered          bool           `json:"is_tampered"`
	TxHash              *string        `json:"tx_hash,omitempty"`
	AnchoredAt          *string        `json:"anchored_at,omitempty"`
	BlockchainTimestamp *uint64        `json:"blockchain_timestamp,omitempty"`
	Details             map[string]any `json:"details"`
}

// handleVerify recomputes the hash from the stored submission and classifies
// the record as pending, anchored, tampered, or failed. Tampering always
// wins; the ledger is only consulted when the record claims to be anchored.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "public_id")

	ctx, cancel := timeoutCtx(r)
	defer cancel()
	rec, err := s.Craft.GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "CraftID "+publicID+" not found")
			return
		}
		writeError(w, http.StatusBadGateway, "db read failed")
		return
	}

	computed, err := canonical.PublicHash(rec.Submission.Artisan, rec.Submission.Art, rec.Timestamp, rec.Salt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash computation failed")
		return
	}
	tampered := computed != rec.PublicHash

	var onChain bool
	var blockTS uint64
	ledgerChecked := false
	if rec.Status == store.StatusAnchored && rec.TxHash != nil {
		lctx, lcancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer lcancel()
		anchored, ts, err := s.Ledger.IsAnchored(lctx, rec.PublicHash)
		if err == nil {
			onChain = anchored
			blockTS = ts
			ledgerChecked = true
		}
	}

	resp := verifyResponse{
		PublicID:     publicID,
		StoredHash:   rec.PublicHash,
		ComputedHash: computed,
		TxHash:       rec.TxHash,
		AnchoredAt:   rec.AnchoredAt,
		Details:      map[string]any{"metadata_tampered": tampered},
	}
	if ledgerChecked && onChain {
		resp.BlockchainTimestamp = &blockTS
	}

	switch {
	case tampered:
		resp.Status = "tampered"
		resp.IsTampered = true
		resp.Details["reason"] = "Stored hash does not match recomputed hash from current metadata"
		resp.Details["blockchain_verified"] = onChain
	case rec.Status == store.StatusFailed:
		resp.Status = "failed"
		resp.Details["blockchain_verified"] = false
		if rec.LastError != nil {
			resp.Details["last_error"] = *rec.LastError
		}
	case rec.Status == store.StatusAnchored && onChain:
		resp.Status = "anchored"
		resp.Details["blockchain_verified"] = true
	case rec.Status == store.StatusQueued:
		resp.Status = "pending"
		resp.Details["blockchain_verified"] = false
		resp.Details["reason"] = "Anchoring is pending (not yet on blockchain)"
	default:
		// Record claims anchored but the ledger lookup was false or
		// unavailable; the provider may be lagging.
		resp.Status = "pending"
		resp.Details["blockchain_verified"] = false
		resp.Details["reason"] = "Blockchain verification failed or pending confirmation"
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleVerifyQR is the link target advertised in the intake response; it
// points the scanner at the verification endpoint.
func (s *Server) handleVerifyQR(w http.ResponseWriter, r *http.Request) {
	publicID := chi.URLParam(r, "public_id")
	writeJSON(w, http.StatusOK, map[string]any{
		"public_id":        publicID,
		"verification_url": s.cfg.PublicBaseURL + "/verify/" + publicID,
	})
}
