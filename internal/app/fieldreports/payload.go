package fieldreports

import (
	"encoding/json"
	"time"

	"github.com/oapi-codegen/nullable"

	"github.com/transportops/field-service-api/internal/ports/out/reportrepo"
)

// DraftPayload is the allow-list of fields a field device may write. Unknown
// keys in the submitted payload are silently dropped by decoding into this
// fixed shape; anything not listed here (status, customer, driver,
// service_type, trip ids) cannot be injected from the outside.
//
// Every field is tri-state: absent leaves the stored value untouched, null
// clears it, a value replaces it.
type DraftPayload struct {
	QtyOrWeight       nullable.Nullable[float64] `json:"qty_or_weight,omitempty"`
	Photo             nullable.Nullable[string]  `json:"photo,omitempty"`
	GPSLat            nullable.Nullable[float64] `json:"gps_lat,omitempty"`
	GPSLng            nullable.Nullable[float64] `json:"gps_lng,omitempty"`
	Notes             nullable.Nullable[string]  `json:"notes,omitempty"`
	PerformedAt       nullable.Nullable[string]  `json:"performed_at,omitempty"`
	PackageCount      nullable.Nullable[int]     `json:"package_count,omitempty"`
	IsWasteSafe       nullable.Nullable[bool]    `json:"is_waste_safe,omitempty"`
	SafetyIssueReason nullable.Nullable[string]  `json:"safety_issue_reason,omitempty"`
	SafetyIssuePhoto  nullable.Nullable[string]  `json:"safety_issue_photo,omitempty"`
	IsSafetyCritical  nullable.Nullable[bool]    `json:"is_safety_critical,omitempty"`
	IsSafetyResolved  nullable.Nullable[bool]    `json:"is_safety_resolved,omitempty"`
	IsWasteCollected  nullable.Nullable[bool]    `json:"is_waste_collected,omitempty"`
}

func parseDraftPayload(raw json.RawMessage) (DraftPayload, *Error) {
	var p DraftPayload
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return DraftPayload{}, &Error{Status: 400, Code: "INVALID_PAYLOAD", Message: "payload must be a JSON object of draft fields"}
	}
	return p, nil
}

// performedAtLayouts are tried in order. The first two carry an explicit zone
// offset; the rest are interpreted in the server's location.
var performedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

var performedAtNaiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// normalizePerformedAt parses a client timestamp and normalizes it to a
// timezone-naive server-local instant, the representation the record stores.
func normalizePerformedAt(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range performedAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.In(loc)
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), true
		}
	}
	for _, layout := range performedAtNaiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// applyDraftPayload merges the payload into the record. This is the single
// mapping table between wire field names and stored fields; submissions never
// touch the record any other way.
func applyDraftPayload(rep *reportrepo.Report, p DraftPayload, loc *time.Location) *Error {
	applyFloat(&rep.QtyOrWeight, p.QtyOrWeight)
	applyString(&rep.Photo, p.Photo)
	applyFloat(&rep.GPSLat, p.GPSLat)
	applyFloat(&rep.GPSLng, p.GPSLng)
	applyString(&rep.Notes, p.Notes)
	applyInt(&rep.PackageCount, p.PackageCount)
	applyBool(&rep.IsWasteSafe, p.IsWasteSafe)
	applyString(&rep.SafetyIssueReason, p.SafetyIssueReason)
	applyString(&rep.SafetyIssuePhoto, p.SafetyIssuePhoto)
	applyBool(&rep.IsSafetyCritical, p.IsSafetyCritical)
	applyBool(&rep.IsSafetyResolved, p.IsSafetyResolved)
	applyBool(&rep.IsWasteCollected, p.IsWasteCollected)

	if p.PerformedAt.IsSpecified() {
		if p.PerformedAt.IsNull() {
			rep.PerformedAt = nil
		} else {
			t, ok := normalizePerformedAt(p.PerformedAt.MustGet(), loc)
			if !ok {
				return &Error{
					Status:  422,
					Code:    "INVALID_TIMESTAMP",
					Message: "invalid performed_at",
					Details: map[string]any{"performed_at": "must be an ISO 8601 timestamp"},
				}
			}
			rep.PerformedAt = &t
		}
	}
	return nil
}

func applyString(dst **string, o nullable.Nullable[string]) {
	if !o.IsSpecified() {
		return
	}
	if o.IsNull() {
		*dst = nil
		return
	}
	v := o.MustGet()
	*dst = &v
}

func applyFloat(dst **float64, o nullable.Nullable[float64]) {
	if !o.IsSpecified() {
		return
	}
	if o.IsNull() {
		*dst = nil
		return
	}
	v := o.MustGet()
	*dst = &v
}

func applyInt(dst **int, o nullable.Nullable[int]) {
	if !o.IsSpecified() {
		return
	}
	if o.IsNull() {
		*dst = nil
		return
	}
	v := o.MustGet()
	*dst = &v
}

func applyBool(dst **bool, o nullable.Nullable[bool]) {
	if !o.IsSpecified() {
		return
	}
	if o.IsNull() {
		*dst = nil
		return
	}
	v := o.MustGet()
	*dst = &v
}
