package processor

import (
	"github.com/google/uuid"

	"github.com/banktl/atmwatch/internal/clock"
	"github.com/banktl/atmwatch/internal/models"
)

// TerminalObservation carries the discovery context for one terminal
// coming out of the search phase.
type TerminalObservation struct {
	TerminalID     string
	FetchedStatus  string
	IssueStateCode string
	NewlyFound     bool
	Raw            map[string]interface{}
}

// defaultIssueStateCode is used for the detail query when the search
// result did not carry one.
const defaultIssueStateCode = "HARD"

// ObservationFromSearch builds the discovery context from one search
// result item. fetchedStatus is the filter the terminal was found
// under; first occurrence wins when a terminal shows up under several.
func ObservationFromSearch(item map[string]interface{}, fetchedStatus string) TerminalObservation {
	code := getString(item, "issueStateCode")
	if code == "" {
		code = defaultIssueStateCode
	}
	return TerminalObservation{
		TerminalID:     getString(item, "terminalId"),
		FetchedStatus:  fetchedStatus,
		IssueStateCode: code,
		Raw:            item,
	}
}

// TerminalRecord converts one terminal-details body item into a
// canonical observation. The fault block comes from faultList[0] when
// present, all nulls otherwise.
func (p *Processor) TerminalRecord(item map[string]interface{}, obs TerminalObservation) models.TerminalStatusRecord {
	now := p.clk.Now()
	requestID := uuid.NewString()

	location := getString(item, "location")
	rec := models.TerminalStatusRecord{
		UniqueRequestID: requestID,
		TerminalID:      obs.TerminalID,
		Location:        location,
		SerialNumber:    getString(item, "serialNumber"),
		IssueStateName:  getString(item, "issueStateName"),
		FetchedStatus:   obs.FetchedStatus,
		RetrievedDate:   now,
		FaultData:       p.faultData(item),
	}
	if rec.TerminalID == "" {
		rec.TerminalID = getString(item, "terminalId")
	}

	// The raw blob mirrors the canonical fields so a reader needs only
	// the JSONB.
	raw := make(map[string]interface{}, len(item)+5)
	for k, v := range item {
		raw[k] = v
	}
	raw["terminal_id"] = rec.TerminalID
	raw["location"] = rec.Location
	raw["serial_number"] = rec.SerialNumber
	raw["issue_state_name"] = rec.IssueStateName
	raw["fetched_status"] = rec.FetchedStatus
	rec.RawTerminalData = raw

	rec.Metadata = models.RecordMetadata{
		RetrievalTimestamp: clock.ISO(now),
		DemoMode:           p.demoMode,
		UniqueRequestID:    requestID,
		ProcessingInfo: models.ProcessingInfo{
			HasFaultData:      rec.FaultData.ExternalFaultID != nil || rec.FaultData.AgentErrorDescription != nil,
			HasLocation:       location != "",
			StatusAtRetrieval: rec.IssueStateName,
			IsNewlyDiscovered: obs.NewlyFound,
		},
	}
	return rec
}

// faultData extracts faultList[0]. The vendor creationDate is a UTC
// millisecond epoch; it is rendered DD:MM:YYYY HH:MM:SS in Dili time.
func (p *Processor) faultData(item map[string]interface{}) models.FaultData {
	faults, ok := getList(item, "faultList")
	if !ok || len(faults) == 0 {
		return models.FaultData{}
	}
	fault, ok := faults[0].(map[string]interface{})
	if !ok {
		return models.FaultData{}
	}

	fd := models.FaultData{
		Year:                  getStringPtr(fault, "year"),
		Month:                 getStringPtr(fault, "month"),
		Day:                   getStringPtr(fault, "day"),
		ExternalFaultID:       getStringPtr(fault, "externalFaultId"),
		AgentErrorDescription: getStringPtr(fault, "agentErrorDescription"),
	}
	if ms, ok := getInt64(fault, "creationDate"); ok {
		formatted := clock.FormatFault(clock.FromEpochMillis(ms))
		fd.CreationDate = &formatted
	}
	return fd
}
