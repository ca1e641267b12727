// Package models holds the canonical record shapes the collector
// persists: per-region aggregates, per-terminal status observations
// and per-terminal cash positions.
package models

import (
	"time"
)

// RegionalSnapshot is one per-region aggregate count at one point in
// time. Counts are derived from the vendor's percentage strings; the
// percentages remain the source of truth.
type RegionalSnapshot struct {
	UniqueRequestID string    `json:"unique_request_id" db:"unique_request_id"`
	RegionCode      string    `json:"region_code" db:"region_code"`
	DateCreation    time.Time `json:"date_creation" db:"retrieval_timestamp"`

	CountAvailable    int `json:"count_available" db:"count_available"`
	CountWarning      int `json:"count_warning" db:"count_warning"`
	CountZombie       int `json:"count_zombie" db:"count_zombie"`
	CountWounded      int `json:"count_wounded" db:"count_wounded"`
	CountOutOfService int `json:"count_out_of_service" db:"count_out_of_service"`

	PercentageAvailable    float64 `json:"percentage_available"`
	PercentageWarning      float64 `json:"percentage_warning"`
	PercentageZombie       float64 `json:"percentage_zombie"`
	PercentageWounded      float64 `json:"percentage_wounded"`
	PercentageOutOfService float64 `json:"percentage_out_of_service"`

	TotalATMsInRegion int `json:"total_atms_in_region" db:"total_atms_in_region"`

	// RawRegionalData is the untouched per-region fragment of the
	// vendor fifth_graphic array.
	RawRegionalData map[string]interface{} `json:"raw_regional_data" db:"raw_regional_data"`
}

// CountSum returns the sum of the five state counts. Outside failover
// it equals TotalATMsInRegion up to rounding.
func (s RegionalSnapshot) CountSum() int {
	return s.CountAvailable + s.CountWarning + s.CountZombie + s.CountWounded + s.CountOutOfService
}

// TerminalStatusRecord is one observation of one terminal. Records are
// append-only and never updated in place.
type TerminalStatusRecord struct {
	UniqueRequestID string    `json:"unique_request_id" db:"unique_request_id"`
	TerminalID      string    `json:"terminal_id" db:"terminal_id"`
	Location        string    `json:"location" db:"location"`
	SerialNumber    string    `json:"serial_number" db:"serial_number"`
	IssueStateName  string    `json:"issue_state_name" db:"issue_state_name"`
	FetchedStatus   string    `json:"fetched_status" db:"fetched_status"`
	RetrievedDate   time.Time `json:"retrieved_date" db:"retrieved_date"`

	RawTerminalData map[string]interface{} `json:"raw_terminal_data" db:"raw_terminal_data"`
	FaultData       FaultData              `json:"fault_data" db:"fault_data"`
	Metadata        RecordMetadata         `json:"metadata" db:"metadata"`
}

// FaultData mirrors faultList[0] of the vendor terminal-details
// response. All fields are nullable; CreationDate is DD:MM:YYYY
// HH:MM:SS in Dili time.
type FaultData struct {
	Year                  *string `json:"year"`
	Month                 *string `json:"month"`
	Day                   *string `json:"day"`
	ExternalFaultID       *string `json:"externalFaultId"`
	AgentErrorDescription *string `json:"agentErrorDescription"`
	CreationDate          *string `json:"creationDate"`
}

// RecordMetadata is the metadata JSONB blob attached to every
// terminal observation.
type RecordMetadata struct {
	RetrievalTimestamp string         `json:"retrieval_timestamp"`
	DemoMode           bool           `json:"demo_mode"`
	UniqueRequestID    string         `json:"unique_request_id"`
	ProcessingInfo     ProcessingInfo `json:"processing_info"`
}

// ProcessingInfo summarises what the processor saw when it built the
// record.
type ProcessingInfo struct {
	HasFaultData      bool   `json:"has_fault_data"`
	HasLocation       bool   `json:"has_location"`
	StatusAtRetrieval string `json:"status_at_retrieval"`
	IsNewlyDiscovered bool   `json:"is_newly_discovered,omitempty"`
}

// Null-record reasons for cash observations. Tests pin these strings;
// persisted rows carry them verbatim.
const (
	NullReasonNoBody          = "No body data"
	NullReasonNoCashInfo      = "No cash info"
	NullReasonNoCassettes     = "No cassette data"
	NullReasonInvalidCassette = "Invalid cassette data"
)

// CashRecord is one cash-position observation of one terminal. A null
// record means "we looked and there was nothing meaningful"; the raw
// vendor response is preserved either way.
type CashRecord struct {
	UniqueRequestID    string    `json:"unique_request_id" db:"unique_request_id"`
	TerminalID         string    `json:"terminal_id" db:"terminal_id"`
	BusinessCode       string    `json:"business_code" db:"business_code"`
	TechnicalCode      string    `json:"technical_code" db:"technical_code"`
	ExternalID         string    `json:"external_id" db:"external_id"`
	RetrievalTimestamp time.Time `json:"retrieval_timestamp" db:"retrieval_timestamp"`
	EventDate          time.Time `json:"event_date" db:"event_date"`

	TotalCashAmount *float64 `json:"total_cash_amount" db:"total_cash_amount"`
	TotalCurrency   *string  `json:"total_currency" db:"total_currency"`

	Cassettes         []CassetteState `json:"cassettes_data" db:"cassettes_data"`
	CassetteCount     int             `json:"cassette_count" db:"cassette_count"`
	HasLowCashWarning bool            `json:"has_low_cash_warning" db:"has_low_cash_warning"`
	HasCashErrors     bool            `json:"has_cash_errors" db:"has_cash_errors"`

	IsNullRecord bool    `json:"is_null_record" db:"is_null_record"`
	NullReason   *string `json:"null_reason" db:"null_reason"`

	RawCashData map[string]interface{} `json:"raw_cash_data" db:"raw_cash_data"`
}

// CassetteState is one physical cash container inside a terminal.
type CassetteState struct {
	CassetteID        string   `json:"cassette_id"`
	LogicalNumber     int      `json:"logical_number"`
	PhysicalNumber    int      `json:"physical_number"`
	Type              string   `json:"type"`
	TypeDescription   string   `json:"type_description"`
	Status            string   `json:"status"`
	StatusDescription string   `json:"status_description"`
	StatusColor       string   `json:"status_color"`
	Currency          *string  `json:"currency,omitempty"`
	Denomination      *float64 `json:"denomination,omitempty"`
	NoteCount         int      `json:"note_count"`
	TotalValue        float64  `json:"total_value"`
	Percentage        float64  `json:"percentage"`
	InstanceID        string   `json:"instance_id"`
}

// CycleSnapshot groups everything one collection cycle produced, for
// persistence, JSON artifacts and health reporting.
type CycleSnapshot struct {
	CycleID            string                 `json:"cycle_id"`
	StartedAt          time.Time              `json:"started_at"`
	Regional           *RegionalSnapshot      `json:"regional,omitempty"`
	Terminals          []TerminalStatusRecord `json:"terminals"`
	Cash               []CashRecord           `json:"cash,omitempty"`
	Failover           bool                   `json:"failover"`
	FailoverReason     string                 `json:"failover_reason,omitempty"`
	DemoMode           bool                   `json:"demo_mode"`
	PerformanceMetrics map[string]float64     `json:"performance_metrics"`
}
