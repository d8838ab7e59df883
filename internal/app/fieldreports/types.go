package fieldreports

import (
	"encoding/json"

	"github.com/transportops/field-service-api/internal/domain"
)

type SubmitMode string

const (
	ModeCreated SubmitMode = "created"
	ModeEdited  SubmitMode = "edited"
)

type SubmitDraftInput struct {
	QRToken           string
	DriverCanonicalID domain.DriverCanonicalID

	// Payload is the raw field-device payload; it is filtered to the draft
	// allow-list before anything touches the record.
	Payload json.RawMessage
}

type SubmitResult struct {
	Mode     SubmitMode
	ReportID domain.ReportID
	TripID   domain.TripID

	// TripDate is the server-local ISO day the trip id was derived from.
	TripDate string
}

type FinalizeResult struct {
	ReportID domain.ReportID
	TripID   domain.TripID
	Status   domain.ReportStatus
}
