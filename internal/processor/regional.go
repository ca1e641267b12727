// Package processor converts vendor payloads into the canonical record
// shapes. It is pure: payloads plus a wall clock in, records out.
package processor

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/banktl/atmwatch/internal/clock"
	"github.com/banktl/atmwatch/internal/models"
)

// Processor builds canonical records from vendor payloads.
type Processor struct {
	clk        clock.Clock
	regionCode string
	totalATMs  int
	demoMode   bool
}

// New builds a processor for one region and fleet size.
func New(clk clock.Clock, regionCode string, totalATMs int, demoMode bool) *Processor {
	return &Processor{
		clk:        clk,
		regionCode: regionCode,
		totalATMs:  totalATMs,
		demoMode:   demoMode,
	}
}

// stateKeys maps vendor state_count keys onto count/percentage slots.
var stateKeys = []string{
	models.StatusAvailable,
	models.StatusWarning,
	models.StatusZombie,
	models.StatusWounded,
	models.StatusOutOfService,
}

// RegionalSnapshot extracts the configured region's fragment from the
// dashboard fifth_graphic array and converts its percentage strings to
// counts. Rounded counts that do not sum to the fleet size are logged
// but persisted anyway; the percentages are the source of truth.
func (p *Processor) RegionalSnapshot(dashboard map[string]interface{}) (*models.RegionalSnapshot, error) {
	graphics, ok := getList(dashboard, "fifth_graphic")
	if !ok {
		return nil, fmt.Errorf("dashboard response has no fifth_graphic")
	}

	for _, item := range graphics {
		region, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if getString(region, "hc-key") != p.regionCode {
			continue
		}
		return p.buildRegional(region)
	}
	return nil, fmt.Errorf("region %s not present in fifth_graphic", p.regionCode)
}

func (p *Processor) buildRegional(region map[string]interface{}) (*models.RegionalSnapshot, error) {
	stateCount, ok := getMap(region, "state_count")
	if !ok {
		return nil, fmt.Errorf("region %s fragment has no state_count", p.regionCode)
	}

	snap := &models.RegionalSnapshot{
		UniqueRequestID:   uuid.NewString(),
		RegionCode:        p.regionCode,
		DateCreation:      p.clk.Now(),
		TotalATMsInRegion: p.totalATMs,
		RawRegionalData:   region,
	}

	percentages := make(map[string]float64, len(stateKeys))
	for _, vendorState := range stateKeys {
		pct, _ := getFloat(stateCount, vendorState)
		percentages[models.Collapse(vendorState)] += pct
	}
	// Vendor variants (HARD, CASH, UNAVAILABLE) fold into the
	// canonical slots when present.
	for _, variant := range []string{"HARD", "CASH", "UNAVAILABLE"} {
		if pct, ok := getFloat(stateCount, variant); ok {
			percentages[models.Collapse(variant)] += pct
		}
	}

	snap.PercentageAvailable = percentages[models.StatusAvailable]
	snap.PercentageWarning = percentages[models.StatusWarning]
	snap.PercentageZombie = percentages[models.StatusZombie]
	snap.PercentageWounded = percentages[models.StatusWounded]
	snap.PercentageOutOfService = percentages[models.StatusOutOfService]

	snap.CountAvailable = p.toCount(snap.PercentageAvailable)
	snap.CountWarning = p.toCount(snap.PercentageWarning)
	snap.CountZombie = p.toCount(snap.PercentageZombie)
	snap.CountWounded = p.toCount(snap.PercentageWounded)
	snap.CountOutOfService = p.toCount(snap.PercentageOutOfService)

	if sum := snap.CountSum(); sum != p.totalATMs {
		log.Warn().Str("region", p.regionCode).
			Int("count_sum", sum).Int("total_atms", p.totalATMs).
			Msg("Rounded state counts do not sum to fleet size")
	}
	return snap, nil
}

// toCount converts a [0,1] percentage into a nearest-integer count of
// the fleet.
func (p *Processor) toCount(pct float64) int {
	return int(math.Round(pct * float64(p.totalATMs)))
}
