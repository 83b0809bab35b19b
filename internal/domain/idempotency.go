package domain

import "time"

// IdempotencyRecord caches the response of a critical mutation request so
// retried deliveries replay the stored response instead of re-running the
// handler. Keyed by a deterministic fingerprint of the request.
type IdempotencyRecord struct {
	ID                  int64     `gorm:"primaryKey" json:"id"`
	Key                 string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"key"`
	Endpoint            string    `gorm:"type:varchar(255);not null;index" json:"endpoint"`
	Method              string    `gorm:"type:varchar(10);not null" json:"method"`
	ContentHash         string    `gorm:"type:varchar(64);not null" json:"content_hash"`
	ResponseStatus      int       `gorm:"not null" json:"response_status"`
	ResponseBody        string    `gorm:"type:text" json:"response_body"`
	ResponseContentType string    `gorm:"type:varchar(100)" json:"response_content_type"`
	ExpiresAt           time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt           time.Time `json:"created_at"`
}

func (IdempotencyRecord) TableName() string { return "idempotency_records" }

func (r *IdempotencyRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
