package domain

// CustomerID is the customer identity a signed QR token is bound to.
// It is the document name assigned by the back office; we treat it as opaque.
type CustomerID string

// DriverCanonicalID is the stable public handle of a driver, distinct from any
// internal storage identity. Tokens, URLs and field reports all reference
// drivers by canonical id.
type DriverCanonicalID string

// ReportID is an internal identifier for a field report record.
type ReportID string
