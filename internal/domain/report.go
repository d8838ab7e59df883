package domain

type ReportStatus string

const (
	ReportStatusDraft ReportStatus = "Draft"
	ReportStatusFinal ReportStatus = "Final"
)
