// Package failover synthesises a complete OUT_OF_SERVICE snapshot when
// the vendor cannot be reached or authenticated against, so downstream
// sees a definitive fleet state instead of stale data.
package failover

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/banktl/atmwatch/internal/clock"
	"github.com/banktl/atmwatch/internal/models"
	"github.com/banktl/atmwatch/internal/registry"
)

// Mode distinguishes the two failover branches. The serial-number
// marker on synthetic records lets operators tell a network outage
// from a credentials problem in the persisted data.
type Mode int

const (
	// ConnectionFailed is the reachability-probe branch.
	ConnectionFailed Mode = iota
	// AuthFailed is the authentication branch.
	AuthFailed
)

func (m Mode) marker() string {
	if m == AuthFailed {
		return "AUTH_FAILED"
	}
	return "CONNECTION_FAILED"
}

func (m Mode) description(cause error) string {
	if m == AuthFailed {
		return fmt.Sprintf("Authentication against vendor API failed: %v", cause)
	}
	return fmt.Sprintf("Vendor host unreachable: %v", cause)
}

// Synthesiser produces the failover snapshot for the known fleet.
type Synthesiser struct {
	clk        clock.Clock
	regionCode string
	totalATMs  int
	demoMode   bool
}

// New builds a synthesiser for one region and fleet size.
func New(clk clock.Clock, regionCode string, totalATMs int, demoMode bool) *Synthesiser {
	return &Synthesiser{
		clk:        clk,
		regionCode: regionCode,
		totalATMs:  totalATMs,
		demoMode:   demoMode,
	}
}

// Snapshot emits one all-OUT_OF_SERVICE regional snapshot plus one
// synthetic observation per known terminal. The cycle that persists it
// is reported as successful: the failover acted as designed.
func (s *Synthesiser) Snapshot(mode Mode, cause error, reg *registry.Registry) (*models.RegionalSnapshot, []models.TerminalStatusRecord) {
	now := s.clk.Now()

	regional := &models.RegionalSnapshot{
		UniqueRequestID:        uuid.NewString(),
		RegionCode:             s.regionCode,
		DateCreation:           now,
		CountOutOfService:      s.totalATMs,
		PercentageOutOfService: 1.0,
		TotalATMsInRegion:      s.totalATMs,
		RawRegionalData: map[string]interface{}{
			"hc-key":          s.regionCode,
			"synthetic":       true,
			"failover_marker": mode.marker(),
			"state_count": map[string]interface{}{
				models.StatusOutOfService: "1.00000000",
			},
		},
	}

	entries := reg.Entries()
	records := make([]models.TerminalStatusRecord, 0, len(entries))
	description := mode.description(cause)

	for _, entry := range entries {
		requestID := uuid.NewString()
		rec := models.TerminalStatusRecord{
			UniqueRequestID: requestID,
			TerminalID:      entry.TerminalID,
			Location:        entry.Location,
			SerialNumber:    mode.marker(),
			IssueStateName:  models.StatusOutOfService,
			FetchedStatus:   models.StatusOutOfService,
			RetrievedDate:   now,
			FaultData: models.FaultData{
				AgentErrorDescription: &description,
			},
			RawTerminalData: map[string]interface{}{
				"terminal_id":      entry.TerminalID,
				"location":         entry.Location,
				"serial_number":    mode.marker(),
				"issue_state_name": models.StatusOutOfService,
				"fetched_status":   models.StatusOutOfService,
				"synthetic":        true,
			},
			Metadata: models.RecordMetadata{
				RetrievalTimestamp: clock.ISO(now),
				DemoMode:           s.demoMode,
				UniqueRequestID:    requestID,
				ProcessingInfo: models.ProcessingInfo{
					HasFaultData:      true,
					HasLocation:       entry.Location != "",
					StatusAtRetrieval: models.StatusOutOfService,
				},
			},
		}
		records = append(records, rec)
	}

	log.Warn().Str("marker", mode.marker()).
		Int("terminals", len(records)).
		Str("region", s.regionCode).
		Msg("Synthesised failover snapshot")
	return regional, records
}
