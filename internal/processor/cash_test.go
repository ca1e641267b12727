package processor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banktl/atmwatch/internal/models"
)

func cashBody(cashInfo map[string]interface{}) []map[string]interface{} {
	item := map[string]interface{}{
		"businessCode":  "000",
		"technicalCode": "000",
		"externalId":    "EXT-8601",
	}
	if cashInfo != nil {
		item["terminalCashInfo"] = cashInfo
	}
	return []map[string]interface{}{item}
}

func validCassette(id string, status string) map[string]interface{} {
	return map[string]interface{}{
		"cassetteId":     id,
		"logicalNumber":  float64(1),
		"physicalNumber": float64(1),
		"type":           "CASH_OUT",
		"status":         status,
		"currency":       "USD",
		"denomination":   float64(50),
		"noteCount":      float64(1200),
		"totalValue":     float64(60000),
		"percentage":     0.6,
	}
}

func TestCashRecord_NullPolicy(t *testing.T) {
	p := New(fixedClock(), "TL-DL", 14, false)

	tests := []struct {
		name   string
		body   []map[string]interface{}
		reason string
	}{
		{
			name:   "empty_body",
			body:   nil,
			reason: models.NullReasonNoBody,
		},
		{
			name:   "missing_cash_info",
			body:   cashBody(nil),
			reason: models.NullReasonNoCashInfo,
		},
		{
			name:   "empty_cassette_list",
			body:   cashBody(map[string]interface{}{"cashInfo": []interface{}{}}),
			reason: models.NullReasonNoCassettes,
		},
		{
			name: "all_cassettes_invalid",
			body: cashBody(map[string]interface{}{
				"cashInfo": []interface{}{
					map[string]interface{}{"status": "OK"}, // no cassetteId
					"not even a map",
				},
			}),
			reason: models.NullReasonInvalidCassette,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := p.CashRecord("8601", tt.body)

			assert.True(t, rec.IsNullRecord)
			require.NotNil(t, rec.NullReason)
			assert.Equal(t, tt.reason, *rec.NullReason)
			assert.Empty(t, rec.Cassettes)
			assert.Equal(t, 0, rec.CassetteCount)
			assert.Nil(t, rec.TotalCashAmount)
			assert.False(t, rec.HasLowCashWarning)
			assert.False(t, rec.HasCashErrors)
		})
	}
}

func TestCashRecord_ValidCassettes(t *testing.T) {
	p := New(fixedClock(), "TL-DL", 14, false)

	body := cashBody(map[string]interface{}{
		"cashInfo": []interface{}{
			validCassette("C1", "OK"),
			validCassette("C2", "LOW"),
			validCassette("C3", "FAULT"),
		},
		"total":    float64(180000),
		"currency": "USD",
	})

	rec := p.CashRecord("8601", body)

	assert.False(t, rec.IsNullRecord)
	assert.Nil(t, rec.NullReason)
	assert.Equal(t, 3, rec.CassetteCount)
	assert.True(t, rec.HasLowCashWarning)
	assert.True(t, rec.HasCashErrors)
	require.NotNil(t, rec.TotalCashAmount)
	assert.Equal(t, 180000.0, *rec.TotalCashAmount)
	require.NotNil(t, rec.TotalCurrency)
	assert.Equal(t, "USD", *rec.TotalCurrency)
	assert.Equal(t, "EXT-8601", rec.ExternalID)
}

func TestCashRecord_InvalidEntriesDroppedNotFatal(t *testing.T) {
	p := New(fixedClock(), "TL-DL", 14, false)

	body := cashBody(map[string]interface{}{
		"cashInfo": []interface{}{
			map[string]interface{}{"status": "OK"}, // dropped, no cassetteId
			validCassette("C2", "OK"),
		},
	})

	rec := p.CashRecord("8601", body)
	assert.False(t, rec.IsNullRecord)
	assert.Equal(t, 1, rec.CassetteCount)
	assert.Equal(t, "C2", rec.Cassettes[0].CassetteID)
}

func TestCashRecord_DefaultCurrency(t *testing.T) {
	p := New(fixedClock(), "TL-DL", 14, false)

	body := cashBody(map[string]interface{}{
		"cashInfo": []interface{}{validCassette("C1", "OK")},
	})
	rec := p.CashRecord("8601", body)

	require.NotNil(t, rec.TotalCurrency)
	assert.Equal(t, "USD", *rec.TotalCurrency)
	assert.Nil(t, rec.TotalCashAmount, "no total supplied")
}

func TestNullCashRecord_CarriesCause(t *testing.T) {
	p := New(fixedClock(), "TL-DL", 14, false)

	rec := p.NullCashRecord("8604", errors.New("connection reset"))

	assert.True(t, rec.IsNullRecord)
	require.NotNil(t, rec.NullReason)
	assert.Equal(t, "Processing error: connection reset", *rec.NullReason)
	assert.Equal(t, "8604", rec.TerminalID)
}

func TestCashRecord_PreservesRawOnNull(t *testing.T) {
	p := New(fixedClock(), "TL-DL", 14, false)

	body := cashBody(nil)
	rec := p.CashRecord("8601", body)

	require.NotNil(t, rec.RawCashData)
	assert.Equal(t, "000", rec.RawCashData["businessCode"])
}
