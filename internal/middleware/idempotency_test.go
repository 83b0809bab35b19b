package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cabanas/internal/database"
	"cabanas/internal/domain"
	"cabanas/internal/pkg/metrics"
	"cabanas/internal/repository"
)

func setupRouter(t *testing.T, store IdempotencyStore, ttl time.Duration) (*gin.Engine, *int32) {
	gin.SetMode(gin.TestMode)

	var handlerCalls int32
	r := gin.New()
	r.Use(Idempotency(store, metrics.NewWithRegistry(prometheus.NewRegistry()), zap.NewNop(), ttl,
		"/api/v1/reservations"))
	r.POST("/api/v1/reservations", func(c *gin.Context) {
		n := atomic.AddInt32(&handlerCalls, 1)
		c.JSON(http.StatusCreated, gin.H{"success": true, "call": n})
	})
	r.POST("/api/v1/other", func(c *gin.Context) {
		atomic.AddInt32(&handlerCalls, 1)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
	return r, &handlerCalls
}

func sqliteStore(t *testing.T) *repository.IdempotencyRepository {
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.IdempotencyRecord{}))
	return repository.NewIdempotencyRepository(db)
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysIdenticalRequest(t *testing.T) {
	r, calls := setupRouter(t, sqliteStore(t), 48*time.Hour)

	first := post(r, "/api/v1/reservations", `{"accommodation_id":1}`)
	second := post(r, "/api/v1/reservations", `{"accommodation_id":1}`)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replay"))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestIdempotency_ReplayKeepsContentType(t *testing.T) {
	store := sqliteStore(t)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Idempotency(store, metrics.NewWithRegistry(prometheus.NewRegistry()), zap.NewNop(), 48*time.Hour,
		"/api/v1/reservations"))
	r.POST("/api/v1/reservations", func(c *gin.Context) {
		c.String(http.StatusCreated, "RES260904CAFE01")
	})

	first := post(r, "/api/v1/reservations", `{"accommodation_id":1}`)
	second := post(r, "/api/v1/reservations", `{"accommodation_id":1}`)

	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replay"))
	assert.Equal(t, first.Header().Get("Content-Type"), second.Header().Get("Content-Type"))
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestIdempotency_DifferentBodyIsProcessed(t *testing.T) {
	r, calls := setupRouter(t, sqliteStore(t), 48*time.Hour)

	post(r, "/api/v1/reservations", `{"accommodation_id":1}`)
	post(r, "/api/v1/reservations", `{"accommodation_id":2}`)

	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestIdempotency_SignatureHeaderChangesFingerprint(t *testing.T) {
	r, calls := setupRouter(t, sqliteStore(t), 48*time.Hour)

	req1 := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewBufferString(`{}`))
	req1.Header.Set("X-Signature", "sig-a")
	r.ServeHTTP(httptest.NewRecorder(), req1)

	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewBufferString(`{}`))
	req2.Header.Set("X-Signature", "sig-b")
	r.ServeHTTP(httptest.NewRecorder(), req2)

	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestIdempotency_UncoveredPathPassesThrough(t *testing.T) {
	r, calls := setupRouter(t, sqliteStore(t), 48*time.Hour)

	post(r, "/api/v1/other", `{"x":1}`)
	post(r, "/api/v1/other", `{"x":1}`)

	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestIdempotency_ExpiredEntryIsReprocessed(t *testing.T) {
	store := sqliteStore(t)
	r, calls := setupRouter(t, store, time.Millisecond)

	post(r, "/api/v1/reservations", `{"accommodation_id":1}`)
	time.Sleep(5 * time.Millisecond)
	post(r, "/api/v1/reservations", `{"accommodation_id":1}`)

	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (*domain.IdempotencyRecord, error) {
	return nil, errors.New("store down")
}

func (brokenStore) Create(context.Context, *domain.IdempotencyRecord) error {
	return errors.New("store down")
}

func (brokenStore) Delete(context.Context, int64) error {
	return errors.New("store down")
}

func TestIdempotency_FailsOpenOnStoreError(t *testing.T) {
	r, calls := setupRouter(t, brokenStore{}, 48*time.Hour)

	w := post(r, "/api/v1/reservations", `{"accommodation_id":1}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestIdempotency_ErrorResponsesAreNotCached(t *testing.T) {
	store := sqliteStore(t)
	gin.SetMode(gin.TestMode)

	var calls int32
	r := gin.New()
	r.Use(Idempotency(store, metrics.NewWithRegistry(prometheus.NewRegistry()), zap.NewNop(), 48*time.Hour,
		"/api/v1/reservations"))
	r.POST("/api/v1/reservations", func(c *gin.Context) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			c.JSON(http.StatusConflict, gin.H{"success": false})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true})
	})

	first := post(r, "/api/v1/reservations", `{"accommodation_id":1}`)
	second := post(r, "/api/v1/reservations", `{"accommodation_id":1}`)

	assert.Equal(t, http.StatusConflict, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
