package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// TripID is the deterministic idempotency key for a field report:
// one per (customer, driver, calendar day).
type TripID string

// DeriveTripID derives the trip identity for a (customer, driver, day) triple:
// the first 16 bytes of SHA-256("customer|driver|isoDate"), hex-encoded.
//
// The same triple always yields the same id, which is what makes repeated
// submissions from a flaky field device idempotent. The inputs are joined with
// "|" without escaping; customer and driver identifiers are back-office
// generated names that never contain the separator.
func DeriveTripID(customer CustomerID, driver DriverCanonicalID, isoDate string) TripID {
	sum := sha256.Sum256([]byte(string(customer) + "|" + string(driver) + "|" + isoDate))
	return TripID(hex.EncodeToString(sum[:16]))
}
