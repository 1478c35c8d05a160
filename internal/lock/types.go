package lock

import "time"

// Record is the shape persisted in the lock DynamoDB table.
type Record struct {
	LockID     string    `dynamodbav:"lock_id"` // PK
	Owner      string    `dynamodbav:"owner"`
	AcquiredAt time.Time `dynamodbav:"acquired_at"`
	ExpiresAt  int64     `dynamodbav:"expires_at"` // TTL epoch seconds
}
