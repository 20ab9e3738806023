package main

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nimasrn/farm-ledger/internal/docscan"
	gateway "github.com/nimasrn/farm-ledger/internal/gateways"
	"github.com/nimasrn/farm-ledger/internal/model"
	"github.com/rs/zerolog/log"
)

// ScanRequest carries the raw text read from the card's QR code.
type ScanRequest struct {
	Payload string `json:"payload" binding:"required"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	ScannerID string    `json:"scanner_id"`
	Timestamp time.Time `json:"timestamp"`
	Scanned   int64     `json:"scanned"`
	Rejected  int64     `json:"rejected"`
}

type Handler struct {
	scannerID string
	scanned   atomic.Int64
	rejected  atomic.Int64
}

func NewHandler() *Handler {
	return &Handler{scannerID: "SCANNER_" + uuid.New().String()[:8]}
}

// ScanQR parses the payload and answers with the identity fields. An
// unreadable payload is a 422 so callers do not retry it.
func (h *Handler) ScanQR(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	draft, err := docscan.Parse(req.Payload)
	if err != nil {
		h.rejected.Add(1)
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrValidation) {
			status = http.StatusUnprocessableEntity
		}
		log.Warn().Err(err).Int("payload_len", len(req.Payload)).Msg("QR payload rejected")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	h.scanned.Add(1)
	resp := gateway.ScanResponse{
		ScanID:   uuid.NewString(),
		Identity: identity(draft),
	}
	log.Info().
		Str("scan_id", resp.ScanID).
		Bool("has_national_id", draft.NationalID != "").
		Msg("QR payload scanned")

	c.JSON(http.StatusOK, resp)
}

func identity(d *model.CustomerDraft) gateway.Identity {
	return gateway.Identity{
		Name:        d.Name,
		CareOf:      d.FatherName,
		Gender:      d.Gender,
		YearOfBirth: d.YearOfBirth,
		NationalID:  d.NationalID,
		Village:     d.Village,
		Address:     d.Address,
		District:    d.District,
		State:       d.State,
		Pincode:     d.Pincode,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		ScannerID: h.scannerID,
		Timestamp: time.Now(),
		Scanned:   h.scanned.Load(),
		Rejected:  h.rejected.Load(),
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/scan/qr", handler.ScanQR)
		v1.GET("/health", handler.HealthCheck)
	}
	router.GET("/health", handler.HealthCheck)

	return router
}
