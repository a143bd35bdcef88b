package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auditfront/triagesync/internal/engine"
	"github.com/auditfront/triagesync/internal/findings"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func newTestHandler(testContext *testing.T) (http.Handler, *engine.Engine) {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	core, err := engine.New(engine.Config{
		Reviewer: "alice",
		Dial: func() (*gorm.DB, error) {
			return nil, errors.New("no backing store in this test")
		},
	})
	if err != nil {
		testContext.Fatalf("failed to build engine: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{Engine: core})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}
	return handler, core
}

func TestNewHTTPHandlerRequiresEngine(testContext *testing.T) {
	if _, err := NewHTTPHandler(Dependencies{}); err == nil {
		testContext.Fatalf("expected an error without an engine")
	}
}

func TestHealthEndpoint(testContext *testing.T) {
	handler, _ := newTestHandler(testContext)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestStatusEndpointReportsCounts(testContext *testing.T) {
	handler, core := newTestHandler(testContext)

	hash, err := findings.NewContentHash("status-hash")
	if err != nil {
		testContext.Fatalf("failed to build content hash: %v", err)
	}
	core.Observe(findings.Finding{Hash: hash, Pattern: "NP_NULL_DEREF"})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/status", nil))
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d", recorder.Code)
	}

	var payload statusResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		testContext.Fatalf("failed to decode status payload: %v", err)
	}
	if payload.Pending != 1 {
		testContext.Fatalf("expected one pending operation, got %d", payload.Pending)
	}
	if payload.Status != "0 findings synchronized, 1 remain to be synchronized" {
		testContext.Fatalf("unexpected status line %q", payload.Status)
	}
}

func TestFindingEndpoint(testContext *testing.T) {
	handler, core := newTestHandler(testContext)

	hash, err := findings.NewContentHash("finding-hash")
	if err != nil {
		testContext.Fatalf("failed to build content hash: %v", err)
	}
	core.Observe(findings.Finding{Hash: hash, Pattern: "NP_NULL_DEREF", FirstSeenSeconds: 1700000000})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/findings/finding-hash", nil))
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected 200, got %d", recorder.Code)
	}

	var payload findingResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		testContext.Fatalf("failed to decode finding payload: %v", err)
	}
	if payload.Hash != "finding-hash" || payload.InStore {
		testContext.Fatalf("unexpected payload %+v", payload)
	}
	if payload.FirstSeenSeconds != 1700000000 {
		testContext.Fatalf("expected first seen to surface, got %d", payload.FirstSeenSeconds)
	}
	if payload.FilingStatus != "file" {
		testContext.Fatalf("expected filing status %q, got %q", "file", payload.FilingStatus)
	}
}

func TestFindingEndpointRejectsUnknownAndInvalidHashes(testContext *testing.T) {
	handler, _ := newTestHandler(testContext)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/findings/%20%20", nil))
	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected 400 for a blank hash, got %d", recorder.Code)
	}

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/findings/never-observed", nil))
	if recorder.Code != http.StatusNotFound {
		testContext.Fatalf("expected 404 for an unknown hash, got %d", recorder.Code)
	}
}
