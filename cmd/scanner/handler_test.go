package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	gateway "github.com/nimasrn/farm-ledger/internal/gateways"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const card = `<?xml version="1.0" encoding="UTF-8"?>
<PrintLetterBarcodeData uid="234567890123" name="Ravi Kumar" gender="M" yob="1979" co="S/O Ram Prasad" house="12" street="Canal Road" vtc="Rampur" dist="Meerut" state="Uttar Pradesh" pc="250342"/>`

func setupRouter() (*gin.Engine, *Handler) {
	gin.SetMode(gin.TestMode)
	h := NewHandler()
	return SetupRouter(h), h
}

func post(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestScanQR(t *testing.T) {
	r, h := setupRouter()

	w := post(t, r, "/api/v1/scan/qr", ScanRequest{Payload: card})
	require.Equal(t, http.StatusOK, w.Code)

	var resp gateway.ScanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ScanID)
	assert.Equal(t, "Ravi Kumar", resp.Identity.Name)
	assert.Equal(t, "Ram Prasad", resp.Identity.CareOf)
	assert.Equal(t, "234567890123", resp.Identity.NationalID)
	assert.Equal(t, "Rampur", resp.Identity.Village)
	assert.Equal(t, "250342", resp.Identity.Pincode)
	assert.Equal(t, int64(1), h.scanned.Load())

	// the gateway client reads the same wire format
	draft := resp.Draft()
	assert.Equal(t, gateway.SourceScanner, draft.Source)
	assert.Equal(t, "Ram Prasad", draft.FatherName)
}

func TestScanQR_Unparseable(t *testing.T) {
	r, h := setupRouter()

	w := post(t, r, "/api/v1/scan/qr", ScanRequest{Payload: "not a card"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported QR payload")
	assert.Equal(t, int64(1), h.rejected.Load())
}

func TestScanQR_MissingPayload(t *testing.T) {
	r, _ := setupRouter()

	w := post(t, r, "/api/v1/scan/qr", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthCheck(t *testing.T) {
	r, _ := setupRouter()

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Contains(t, resp.ScannerID, "SCANNER_")
	}
}
