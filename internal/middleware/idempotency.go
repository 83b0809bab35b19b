package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cabanas/internal/domain"
	"cabanas/internal/pkg/metrics"
	"cabanas/internal/repository"
)

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	Create(ctx context.Context, rec *domain.IdempotencyRecord) error
	Delete(ctx context.Context, id int64) error
}

// fingerprintHeaders take part in the request hash: a retry carries the same
// signature and content type, a genuinely different request does not.
var fingerprintHeaders = []string{"X-Signature", "Content-Type"}

// Idempotency replays the stored response for a repeated mutation request.
// Only listed paths are covered, only 2xx responses are cached, and every
// store failure fails open: a broken cache must never block live traffic.
func Idempotency(store IdempotencyStore, m *metrics.Metrics, log *zap.Logger, ttl time.Duration, paths ...string) gin.HandlerFunc {
	covered := make(map[string]bool, len(paths))
	for _, p := range paths {
		covered[p] = true
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}
		if !covered[c.FullPath()] {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   gin.H{"code": "VALIDATION_ERROR", "message": "Unreadable request body"},
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		contentHash := hashContent(c, body)
		key := hashKey(c.Request.Method, c.Request.URL.Path, contentHash)

		ctx := c.Request.Context()
		rec, err := store.Get(ctx, key)
		switch {
		case err == nil && !rec.IsExpired(time.Now()):
			m.IdempotencyTotal.WithLabelValues("hit").Inc()
			c.Header("X-Idempotency-Replay", "true")
			contentType := rec.ResponseContentType
			if contentType == "" {
				contentType = "application/json; charset=utf-8"
			}
			c.Data(rec.ResponseStatus, contentType, []byte(rec.ResponseBody))
			c.Abort()
			return
		case err == nil:
			// Expired entry; drop it and process fresh.
			if derr := store.Delete(ctx, rec.ID); derr != nil {
				log.Warn("idempotency purge failed", zap.Int64("id", rec.ID), zap.Error(derr))
			}
			m.IdempotencyTotal.WithLabelValues("miss").Inc()
		case errors.Is(err, gorm.ErrRecordNotFound):
			m.IdempotencyTotal.WithLabelValues("miss").Inc()
		default:
			m.IdempotencyTotal.WithLabelValues("error").Inc()
			log.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		}

		capture := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = capture
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		rec = &domain.IdempotencyRecord{
			Key:                 key,
			Endpoint:            c.Request.URL.Path,
			Method:              c.Request.Method,
			ContentHash:         contentHash,
			ResponseStatus:      status,
			ResponseBody:        capture.buf.String(),
			ResponseContentType: c.Writer.Header().Get("Content-Type"),
			ExpiresAt:           time.Now().Add(ttl),
		}
		if err := store.Create(ctx, rec); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			log.Warn("idempotency store failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func hashContent(c *gin.Context, body []byte) string {
	h := sha256.New()
	h.Write(body)
	for _, name := range fingerprintHeaders {
		h.Write([]byte(name))
		h.Write([]byte(c.GetHeader(name)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func hashKey(method, path, contentHash string) string {
	h := sha256.Sum256([]byte(method + ":" + path + ":" + contentHash))
	return hex.EncodeToString(h[:])
}

type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
