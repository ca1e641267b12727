package processor

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/banktl/atmwatch/internal/clock"
	"github.com/banktl/atmwatch/internal/models"
)

const defaultCurrency = "USD"

// Cassette statuses that set the record-level flags.
var cashErrorStatuses = map[string]bool{
	"ERROR":  true,
	"FAULT":  true,
	"FAILED": true,
}

// CashRecord applies the null-record policy to one searchTerminal
// response. Missing body, missing terminalCashInfo, an empty cashInfo
// array and all-invalid cassette entries each yield a null record with
// a distinct reason; the raw response is preserved either way.
func (p *Processor) CashRecord(terminalID string, body []map[string]interface{}) models.CashRecord {
	now := p.clk.Now()
	rec := models.CashRecord{
		UniqueRequestID:    uuid.NewString(),
		TerminalID:         terminalID,
		RetrievalTimestamp: now,
		EventDate:          now,
		Cassettes:          []models.CassetteState{},
	}

	if len(body) == 0 {
		return nullCash(rec, models.NullReasonNoBody, nil)
	}

	item := body[0]
	rec.RawCashData = item
	rec.BusinessCode = getString(item, "businessCode")
	rec.TechnicalCode = getString(item, "technicalCode")
	rec.ExternalID = getString(item, "externalId")
	if ms, ok := getInt64(item, "eventDate"); ok {
		rec.EventDate = clock.FromEpochMillis(ms)
	}

	cashInfo, ok := getMap(item, "terminalCashInfo")
	if !ok {
		return nullCash(rec, models.NullReasonNoCashInfo, item)
	}

	cassettesRaw, ok := getList(cashInfo, "cashInfo")
	if !ok || len(cassettesRaw) == 0 {
		return nullCash(rec, models.NullReasonNoCassettes, item)
	}

	cassettes := make([]models.CassetteState, 0, len(cassettesRaw))
	for _, raw := range cassettesRaw {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if cassette, ok := p.cassette(entry); ok {
			cassettes = append(cassettes, cassette)
		}
	}
	if len(cassettes) == 0 {
		return nullCash(rec, models.NullReasonInvalidCassette, item)
	}

	rec.Cassettes = cassettes
	rec.CassetteCount = len(cassettes)
	for _, c := range cassettes {
		if c.Status == "LOW" {
			rec.HasLowCashWarning = true
		}
		if cashErrorStatuses[c.Status] {
			rec.HasCashErrors = true
		}
	}

	if total, ok := getFloat(cashInfo, "total"); ok {
		rec.TotalCashAmount = &total
	}
	currency := defaultCurrency
	if c := getString(cashInfo, "currency"); c != "" {
		currency = c
	}
	rec.TotalCurrency = &currency

	return rec
}

// NullCashRecord builds the record for a terminal whose cash query
// itself failed, carrying the failure in the null reason.
func (p *Processor) NullCashRecord(terminalID string, cause error) models.CashRecord {
	now := p.clk.Now()
	rec := models.CashRecord{
		UniqueRequestID:    uuid.NewString(),
		TerminalID:         terminalID,
		RetrievalTimestamp: now,
		EventDate:          now,
		Cassettes:          []models.CassetteState{},
	}
	return nullCash(rec, fmt.Sprintf("Processing error: %v", cause), nil)
}

func nullCash(rec models.CashRecord, reason string, raw map[string]interface{}) models.CashRecord {
	rec.IsNullRecord = true
	rec.NullReason = &reason
	rec.Cassettes = []models.CassetteState{}
	rec.CassetteCount = 0
	rec.TotalCashAmount = nil
	rec.HasLowCashWarning = false
	rec.HasCashErrors = false
	if raw != nil {
		rec.RawCashData = raw
	}
	return rec
}

// cassette normalises one cashInfo entry. An entry without a cassette
// identifier is invalid and dropped.
func (p *Processor) cassette(entry map[string]interface{}) (models.CassetteState, bool) {
	id := getString(entry, "cassetteId")
	if id == "" {
		return models.CassetteState{}, false
	}

	c := models.CassetteState{
		CassetteID:        id,
		LogicalNumber:     getInt(entry, "logicalNumber"),
		PhysicalNumber:    getInt(entry, "physicalNumber"),
		Type:              getString(entry, "type"),
		TypeDescription:   getString(entry, "typeDescription"),
		Status:            getString(entry, "status"),
		StatusDescription: getString(entry, "statusDescription"),
		StatusColor:       getString(entry, "statusColor"),
		NoteCount:         getInt(entry, "noteCount"),
		InstanceID:        getString(entry, "instanceId"),
	}
	if v, ok := getFloat(entry, "totalValue"); ok {
		c.TotalValue = v
	}
	if v, ok := getFloat(entry, "percentage"); ok {
		c.Percentage = v
	}
	if cur := getString(entry, "currency"); cur != "" {
		c.Currency = &cur
	}
	if d, ok := getFloat(entry, "denomination"); ok {
		c.Denomination = &d
	}
	return c, true
}
