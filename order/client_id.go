package order

import "github.com/google/uuid"

// NewClientOrderID returns a fresh caller-assigned id. A UUID string is 36 characters,
// which is the longest clientOrderId the exchange accepts.
func NewClientOrderID() string {
	return uuid.NewString()
}
