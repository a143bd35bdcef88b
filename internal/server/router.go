// Package server exposes the engine's poll surface over HTTP: status text,
// synchronization counts, and per-finding record summaries. It is strictly
// read-only; record changes are observed by polling, never pushed.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/auditfront/triagesync/internal/engine"
	"github.com/auditfront/triagesync/internal/findings"
	"github.com/auditfront/triagesync/internal/logging"
	"github.com/auditfront/triagesync/internal/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errMissingEngine = errors.New("engine dependency required")

// Dependencies wires the HTTP surface.
type Dependencies struct {
	Engine *engine.Engine
	Logger *zap.Logger
}

// NewHTTPHandler builds the read-only status router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Engine == nil {
		return nil, errMissingEngine
	}
	logger := logging.OrNop(deps.Logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{engine: deps.Engine, logger: logger}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/status", handler.handleStatus)
	router.GET("/findings/:hash", handler.handleFinding)

	return router, nil
}

type httpHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type statusResponse struct {
	Status  string `json:"status"`
	Handled int    `json:"handled"`
	Pending int    `json:"pending"`
}

func (h *httpHandler) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		Status:  h.engine.Status(),
		Handled: h.engine.Handled(),
		Pending: h.engine.Pending(),
	})
}

type findingResponse struct {
	Hash             string   `json:"hash"`
	StoreID          int64    `json:"store_id,omitempty"`
	InStore          bool     `json:"in_store"`
	FirstSeenSeconds int64    `json:"first_seen_s,omitempty"`
	Reviewers        []string `json:"reviewers,omitempty"`
	Claimed          bool     `json:"claimed"`
	FilingStatus     string   `json:"filing_status"`
	FilingKey        string   `json:"filing_key,omitempty"`
}

func (h *httpHandler) handleFinding(c *gin.Context) {
	hash, err := findings.NewContentHash(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hash"})
		return
	}

	record, ok := h.engine.Record(hash)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown finding"})
		return
	}

	response := findingResponse{
		Hash:         record.Hash.String(),
		StoreID:      record.StoreID,
		InStore:      record.InStore,
		Reviewers:    record.History.Reviewers(),
		Claimed:      record.History.Claimed(),
		FilingStatus: h.engine.FilingStatus(hash).String(),
	}
	if record.FirstSeenSeconds > 0 && record.FirstSeenSeconds < store.NeverFiledSeconds {
		response.FirstSeenSeconds = record.FirstSeenSeconds
	}
	if record.FilingKey != "" {
		response.FilingKey = record.FilingKey
	}
	c.JSON(http.StatusOK, response)
}
