package api

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"craftid/backend/internal/attest"
	"craftid/backend/internal/canonical"
	"craftid/backend/internal/store"
)

type createRequest struct {
	Artisan canonical.Artisan `json:"artisan"`
	Art     canonical.Art     `json:"art"`
}

// handleCreate registers a CraftID: uniqueness check, id allocation, hash,
// signed attestation, record insert, queue enqueue. The ledger is never
// touched here; anchoring is asynchronous.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := readJSON(w, r, &req, 1<<20); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Artisan.Name) == "" || strings.TrimSpace(req.Art.Name) == "" {
		writeError(w, http.StatusBadRequest, "artisan.name and art.name are required")
		return
	}

	artNameNorm := strings.ToLower(strings.TrimSpace(req.Art.Name))

	ctx, cancel := timeoutCtx(r)
	defer cancel()
	exists, err := s.Craft.ExistsByArtName(ctx, artNameNorm)
	if err != nil {
		writeError(w, http.StatusBadGateway, "db read failed")
		return
	}
	if exists {
		s.Metrics.IntakeConflict.Inc()
		writeError(w, http.StatusConflict,
			"A similar product name already exists. Please provide a more unique name.")
		return
	}

	ctxSeq, cancelSeq := timeoutCtx(r)
	defer cancelSeq()
	seq, err := s.Craft.NextSequence(ctxSeq, "craftid_seq")
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to allocate public id")
		return
	}
	publicID := fmt.Sprintf("CID-%05d", seq)

	salt := s.cfg.DefaultSalt
	if salt == "" {
		u := uuid.New()
		salt = hex.EncodeToString(u[:])
	}
	timestamp := time.Now().UTC().Truncate(time.Second).Format(time.RFC3339)

	publicHash, err := canonical.PublicHash(req.Artisan, req.Art, timestamp, salt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "hash computation failed")
		return
	}

	payload := attest.Payload{
		PublicID:   publicID,
		PublicHash: publicHash,
		Timestamp:  timestamp,
		Salt:       salt,
	}
	signature, err := s.Signer.Sign(payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "attestation signing failed")
		return
	}
	attestation := attest.Attestation{Payload: payload, Signature: signature}

	rec := store.CraftID{
		PublicID:    publicID,
		ArtNameNorm: artNameNorm,
		Submission:  canonical.Submission{Artisan: req.Artisan, Art: req.Art},
		Timestamp:   timestamp,
		Salt:        salt,
		PublicHash:  publicHash,
		Attestation: attestation,
		Status:      store.StatusQueued,
	}
	ctxIns, cancelIns := timeoutCtx(r)
	defer cancelIns()
	if err := s.Craft.Insert(ctxIns, rec); err != nil {
		// The allocated id is burned, never reused.
		writeError(w, http.StatusInternalServerError, "db insert failed")
		return
	}

	ctxQ, cancelQ := timeoutCtx(r)
	defer cancelQ()
	if err := s.Queue.Enqueue(ctxQ, publicID, publicHash); err != nil {
		// The record stays in queued state; an operator can re-enqueue it.
		writeError(w, http.StatusInternalServerError, "failed to enqueue for anchoring")
		return
	}

	// Best-effort side write; never blocks or fails the request.
	s.Index.Add(r.Context(), publicID, rec.Submission)

	trackingToken, err := s.Tokens.Mint(publicID)
	if err != nil {
		s.log.Warn("tracking token mint failed")
		trackingToken = ""
	}

	s.Metrics.IntakeTotal.Inc()

	now := time.Now().UTC()
	transactionID := "tx_" + now.Format("20060102150405")
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "success",
		"message":        fmt.Sprintf("Your CraftID for '%s' has been created and queued for anchoring.", req.Art.Name),
		"transaction_id": transactionID,
		"timestamp":      now.Format(time.RFC3339),
		"verification": map[string]any{
			"public_id":        publicID,
			"tracking_token":   trackingToken,
			"public_hash":      publicHash,
			"attestation":      attestation,
			"verification_url": s.cfg.PublicBaseURL + "/verify/" + publicID,
			"qr_code_link":     s.cfg.PublicBaseURL + "/verify/qr/" + publicID,
		},
		"artisan_info": map[string]any{
			"name":     req.Artisan.Name,
			"location": req.Artisan.Location,
		},
		"art_info": map[string]any{
			"name":        req.Art.Name,
			"description": req.Art.Description,
		},
		"links": map[string]any{
			"track_status": s.cfg.PublicBaseURL + "/status/" + transactionID,
			"shop_listing": s.cfg.PublicBaseURL + "/shop/" + publicID,
		},
	})
}
