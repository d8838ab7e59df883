package httpapi

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/transportops/field-service-api/internal/app/fieldauth"
	"github.com/transportops/field-service-api/internal/app/fieldreports"
	"github.com/transportops/field-service-api/internal/domain"
	"github.com/transportops/field-service-api/internal/ports/out/clock"
	"github.com/transportops/field-service-api/internal/ports/out/reportrepo"
	"github.com/transportops/field-service-api/internal/ports/out/synclogrepo"
)

// maxBodyBytes caps request bodies; field payloads are small.
const maxBodyBytes = 1 << 20

// Server is the HTTP adapter. It owns request decoding and response shaping
// and delegates everything else to the application services.
type Server struct {
	Auth    *fieldauth.Service
	Reports *fieldreports.Service
	SyncLog synclogrepo.Repository
	Clock   clock.Clock
}

func NewServer(auth *fieldauth.Service, reports *fieldreports.Service, syncLog synclogrepo.Repository, clk clock.Clock) *Server {
	return &Server{
		Auth:    auth,
		Reports: reports,
		SyncLog: syncLog,
		Clock:   clk,
	}
}

type exchangeTokenRequest struct {
	QRToken string `json:"qr_token"`
}

type exchangeTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Customer    string `json:"customer"`
}

func (s *Server) handleExchangeToken(w http.ResponseWriter, r *http.Request) {
	var req exchangeTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.QRToken == "" {
		writeError(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "qr_token is required", nil)
		return
	}

	tok, err := s.Auth.ExchangeQRToken(r.Context(), req.QRToken)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exchangeTokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
		ExpiresIn:   tok.ExpiresIn,
		Customer:    string(tok.Customer),
	})
}

type submitReportRequest struct {
	QRToken           string          `json:"qr_token"`
	DriverCanonicalID string          `json:"driver_canonical_id"`
	Payload           json.RawMessage `json:"payload"`
}

type submitReportResponse struct {
	OK       bool   `json:"ok"`
	Mode     string `json:"mode"`
	ReportID string `json:"report_id"`
	TripID   string `json:"trip_id"`
	TripDate string `json:"trip_date"`
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var req submitReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.Reports.SubmitDraft(r.Context(), fieldreports.SubmitDraftInput{
		QRToken:           req.QRToken,
		DriverCanonicalID: domain.DriverCanonicalID(req.DriverCanonicalID),
		Payload:           req.Payload,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitReportResponse{
		OK:       true,
		Mode:     string(res.Mode),
		ReportID: string(res.ReportID),
		TripID:   string(res.TripID),
		TripDate: res.TripDate,
	})
}

type finalizeReportRequest struct {
	DriverCanonicalID string `json:"driver_canonical_id"`
}

type finalizeReportResponse struct {
	OK       bool   `json:"ok"`
	ReportID string `json:"report_id"`
	Status   string `json:"status"`
}

func (s *Server) handleFinalizeReport(w http.ResponseWriter, r *http.Request) {
	tripID := domain.TripID(chi.URLParam(r, "tripID"))

	var req finalizeReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.Reports.Finalize(r.Context(), tripID, domain.DriverCanonicalID(req.DriverCanonicalID))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, finalizeReportResponse{
		OK:       true,
		ReportID: string(res.ReportID),
		Status:   string(res.Status),
	})
}

// reportView is the read-back shape for the field UI. Unset fields are
// omitted rather than sent as null.
type reportView struct {
	ReportID string              `json:"report_id"`
	TripID   string              `json:"trip_id"`
	Customer string              `json:"customer"`
	Driver   string              `json:"driver_canonical_id"`
	Status   string              `json:"status"`
	TripDate *openapi_types.Date `json:"trip_date,omitempty"`

	QtyOrWeight       *float64 `json:"qty_or_weight,omitempty"`
	Photo             *string  `json:"photo,omitempty"`
	GPSLat            *float64 `json:"gps_lat,omitempty"`
	GPSLng            *float64 `json:"gps_lng,omitempty"`
	Notes             *string  `json:"notes,omitempty"`
	PerformedAt       *string  `json:"performed_at,omitempty"`
	PackageCount      *int     `json:"package_count,omitempty"`
	IsWasteSafe       *bool    `json:"is_waste_safe,omitempty"`
	SafetyIssueReason *string  `json:"safety_issue_reason,omitempty"`
	SafetyIssuePhoto  *string  `json:"safety_issue_photo,omitempty"`
	IsSafetyCritical  *bool    `json:"is_safety_critical,omitempty"`
	IsSafetyResolved  *bool    `json:"is_safety_resolved,omitempty"`
	IsWasteCollected  *bool    `json:"is_waste_collected,omitempty"`

	ServiceType *string `json:"service_type,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "missing claims", nil)
		return
	}
	tripID := domain.TripID(chi.URLParam(r, "tripID"))

	rep, err := s.Reports.GetForCustomer(r.Context(), tripID, claims.Customer)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportView(rep))
}

func toReportView(rep reportrepo.Report) reportView {
	v := reportView{
		ReportID: string(rep.ID),
		TripID:   string(rep.TripID),
		Customer: string(rep.Customer),
		Driver:   string(rep.Driver),
		Status:   string(rep.Status),

		QtyOrWeight:       rep.QtyOrWeight,
		Photo:             rep.Photo,
		GPSLat:            rep.GPSLat,
		GPSLng:            rep.GPSLng,
		Notes:             rep.Notes,
		PackageCount:      rep.PackageCount,
		IsWasteSafe:       rep.IsWasteSafe,
		SafetyIssueReason: rep.SafetyIssueReason,
		SafetyIssuePhoto:  rep.SafetyIssuePhoto,
		IsSafetyCritical:  rep.IsSafetyCritical,
		IsSafetyResolved:  rep.IsSafetyResolved,
		IsWasteCollected:  rep.IsWasteCollected,
		ServiceType:       rep.ServiceType,
		UpdatedAt:         rep.UpdatedAt,
	}
	if rep.TripDate != nil {
		d := openapi_types.Date{Time: *rep.TripDate}
		v.TripDate = &d
	}
	if rep.PerformedAt != nil {
		ts := rep.PerformedAt.Format("2006-01-02T15:04:05")
		v.PerformedAt = &ts
	}
	return v
}

type syncLogRequest struct {
	QueuedBefore int    `json:"queued_before"`
	QueuedAfter  int    `json:"queued_after"`
	Processed    int    `json:"processed"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	Dropped      int    `json:"dropped"`
	SyncTime     string `json:"sync_time"`
}

func (s *Server) handleSyncLog(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PAYLOAD", "could not read request body", nil)
		return
	}
	var req syncLogRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PAYLOAD", "request body must be a JSON object", nil)
		return
	}

	syncTime := s.Clock.Now()
	if req.SyncTime != "" {
		if t, err := time.Parse(time.RFC3339, req.SyncTime); err == nil {
			syncTime = t
		}
	}

	entry := synclogrepo.Entry{
		QueuedBefore: req.QueuedBefore,
		QueuedAfter:  req.QueuedAfter,
		Processed:    req.Processed,
		Succeeded:    req.Succeeded,
		Failed:       req.Failed,
		Dropped:      req.Dropped,
		SyncTime:     syncTime,
		RawPayload:   string(raw),
	}
	if err := s.SyncLog.Append(r.Context(), entry); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleClientError records client-side error context in the server log.
// It always answers ok: error reporting must never break the field flow.
func (s *Server) handleClientError(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err == nil && len(raw) > 0 {
		log.Printf("httpapi: client error report: %s", raw)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_PAYLOAD", "request body must be a JSON object", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
