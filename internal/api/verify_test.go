package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"craftid/backend/internal/attest"
	"craftid/backend/internal/canonical"
	"craftid/backend/internal/store"
)

func seedRecord(t *testing.T, craft *fakeCraft, status store.Status) *store.CraftID {
	t.Helper()
	sub := canonical.Submission{
		Artisan: canonical.Artisan{Name: "Meera Sharma", Location: "Bhuj", ContactNumber: "9800000001", Email: "m@x", AadhaarNumber: "123412341234"},
		Art:     canonical.Art{Name: "Desert Weave", Description: "Handwoven shawl"},
	}
	ts := "2025-01-01T00:00:00Z"
	salt := "00000000000000000000000000000000"
	hash, err := canonical.PublicHash(sub.Artisan, sub.Art, ts, salt)
	require.NoError(t, err)

	rec := &store.CraftID{
		PublicID:    "CID-00001",
		ArtNameNorm: "desert weave",
		Submission:  sub,
		Timestamp:   ts,
		Salt:        salt,
		PublicHash:  hash,
		Attestation: attest.Attestation{Payload: attest.Payload{PublicID: "CID-00001", PublicHash: hash, Timestamp: ts, Salt: salt}, Signature: "deadbeef"},
		Status:      status,
	}
	if status == store.StatusAnchored {
		tx := "0xfeed"
		at := "2025-01-01T00:10:00Z"
		rec.TxHash = &tx
		rec.AnchoredAt = &at
	}
	craft.records[rec.PublicID] = rec
	return rec
}

func getVerify(t *testing.T, h http.Handler, publicID string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/verify/"+publicID, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var body map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	}
	return rr, body
}

func TestVerifyNotFound(t *testing.T) {
	h := newTestServer(newFakeCraft(), &fakeQueue{}, &fakeLedger{}).Router()
	rr, _ := getVerify(t, h, "CID-99999")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestVerifyPendingWhileQueued(t *testing.T) {
	craft := newFakeCraft()
	seedRecord(t, craft, store.StatusQueued)
	h := newTestServer(craft, &fakeQueue{}, &fakeLedger{}).Router()

	rr, body := getVerify(t, h, "CID-00001")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "pending", body["status"])
	require.Equal(t, false, body["is_tampered"])
	details := body["details"].(map[string]any)
	require.Equal(t, false, details["blockchain_verified"])
}

func TestVerifyAnchoredOnChain(t *testing.T) {
	craft := newFakeCraft()
	rec := seedRecord(t, craft, store.StatusAnchored)
	h := newTestServer(craft, &fakeQueue{}, &fakeLedger{anchored: true, ts: 1735690200}).Router()

	rr, body := getVerify(t, h, "CID-00001")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "anchored", body["status"])
	require.Equal(t, false, body["is_tampered"])
	require.Equal(t, rec.PublicHash, body["stored_hash"])
	require.Equal(t, rec.PublicHash, body["computed_hash"])
	require.Equal(t, "0xfeed", body["tx_hash"])
	require.EqualValues(t, 1735690200, body["blockchain_timestamp"])
	details := body["details"].(map[string]any)
	require.Equal(t, true, details["blockchain_verified"])
}

func TestVerifyTamperedMetadata(t *testing.T) {
	craft := newFakeCraft()
	rec := seedRecord(t, craft, store.StatusAnchored)
	// Mutate the stored submission after anchoring; scenario 3.
	rec.Submission.Art.Description = "Altered"
	h := newTestServer(craft, &fakeQueue{}, &fakeLedger{anchored: true, ts: 1735690200}).Router()

	rr, body := getVerify(t, h, "CID-00001")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "tampered", body["status"])
	require.Equal(t, true, body["is_tampered"])
	require.NotEqual(t, body["stored_hash"], body["computed_hash"])
	details := body["details"].(map[string]any)
	require.Equal(t, true, details["blockchain_verified"])
	require.Equal(t, true, details["metadata_tampered"])
}

func TestVerifyAnchoredButProviderLaggingIsPending(t *testing.T) {
	craft := newFakeCraft()
	seedRecord(t, craft, store.StatusAnchored)
	h := newTestServer(craft, &fakeQueue{}, &fakeLedger{anchored: false}).Router()

	rr, body := getVerify(t, h, "CID-00001")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "pending", body["status"])
	details := body["details"].(map[string]any)
	require.Equal(t, false, details["blockchain_verified"])
}

func TestVerifyFailedSurfacesLastError(t *testing.T) {
	craft := newFakeCraft()
	rec := seedRecord(t, craft, store.StatusQueued)
	rec.Status = store.StatusFailed
	reason := "ledger tx_rejected: tx reverted (receipt status 0)"
	rec.LastError = &reason
	h := newTestServer(craft, &fakeQueue{}, &fakeLedger{}).Router()

	rr, body := getVerify(t, h, "CID-00001")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "failed", body["status"])
	details := body["details"].(map[string]any)
	require.Equal(t, reason, details["last_error"])
}

func TestVerifyQRPointsAtVerification(t *testing.T) {
	h := newTestServer(newFakeCraft(), &fakeQueue{}, &fakeLedger{}).Router()
	req := httptest.NewRequest(http.MethodGet, "/verify/qr/CID-00001", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "https://craftid.example/verify/CID-00001", body["verification_url"])
}
