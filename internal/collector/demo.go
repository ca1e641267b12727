package collector

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/banktl/atmwatch/internal/models"
	"github.com/banktl/atmwatch/internal/processor"
	"github.com/banktl/atmwatch/internal/registry"
)

// demoFeed fabricates vendor-shaped payloads for the known fleet so
// demo cycles exercise the real processing paths without a vendor
// session or a database.
type demoFeed struct {
	rng      *rand.Rand
	reg      *registry.Registry
	total    int
	statuses map[string]string
}

func newDemoFeed(reg *registry.Registry, totalATMs int) *demoFeed {
	return &demoFeed{
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		reg:   reg,
		total: totalATMs,
	}
}

// roll assigns every known terminal a status for this cycle, skewed
// towards a mostly healthy fleet.
func (d *demoFeed) roll() {
	d.statuses = make(map[string]string, d.reg.Len())
	for _, id := range d.reg.IDs() {
		r := d.rng.Float64()
		switch {
		case r < 0.72:
			d.statuses[id] = models.StatusAvailable
		case r < 0.84:
			d.statuses[id] = models.StatusWarning
		case r < 0.90:
			d.statuses[id] = models.StatusWounded
		case r < 0.95:
			d.statuses[id] = models.StatusZombie
		default:
			d.statuses[id] = models.StatusOutOfService
		}
	}
}

// dashboard builds a fifth_graphic payload whose percentage strings
// agree with the statuses rolled for this cycle.
func (d *demoFeed) dashboard(regionCode string) map[string]interface{} {
	counts := make(map[string]int)
	for _, status := range d.statuses {
		counts[status]++
	}

	stateCount := make(map[string]interface{})
	for status, n := range counts {
		stateCount[status] = fmt.Sprintf("%.8f", float64(n)/float64(d.total))
	}

	return map[string]interface{}{
		"fifth_graphic": []interface{}{
			map[string]interface{}{
				"hc-key":      regionCode,
				"state_count": stateCount,
				"demo":        true,
			},
		},
	}
}

// search returns the terminals rolled into the given status, shaped
// like vendor search results.
func (d *demoFeed) search(status string) []map[string]interface{} {
	var items []map[string]interface{}
	for _, entry := range d.reg.Entries() {
		if d.statuses[entry.TerminalID] != status {
			continue
		}
		items = append(items, map[string]interface{}{
			"terminalId":     entry.TerminalID,
			"location":       entry.Location,
			"issueStateName": status,
			"issueStateCode": "HARD",
		})
	}
	return items
}

// details builds one terminal-details body item, with a fault block on
// unhealthy terminals.
func (d *demoFeed) details(obs processor.TerminalObservation, now time.Time) []map[string]interface{} {
	status := d.statuses[obs.TerminalID]
	item := map[string]interface{}{
		"terminalId":     obs.TerminalID,
		"location":       d.reg.Location(obs.TerminalID),
		"serialNumber":   fmt.Sprintf("DEMO-%s", obs.TerminalID),
		"issueStateName": status,
	}
	if status != models.StatusAvailable {
		item["faultList"] = []interface{}{
			map[string]interface{}{
				"year":                  fmt.Sprintf("%d", now.Year()),
				"month":                 fmt.Sprintf("%02d", int(now.Month())),
				"day":                   fmt.Sprintf("%02d", now.Day()),
				"externalFaultId":       fmt.Sprintf("DEMO-FAULT-%s", obs.TerminalID),
				"agentErrorDescription": demoFaults[d.rng.Intn(len(demoFaults))],
				"creationDate":          float64(now.Add(-time.Duration(d.rng.Intn(120)) * time.Minute).UnixMilli()),
			},
		}
	}
	return []map[string]interface{}{item}
}

var demoFaults = []string{
	"Card reader requires service",
	"Receipt printer out of paper",
	"Cash dispenser jam detected",
	"Communication timeout with host",
	"Deposit module offline",
}

// cash builds one cash-info body item with four cassettes.
func (d *demoFeed) cash(terminalID string, now time.Time) []map[string]interface{} {
	denominations := []float64{100, 50, 20, 10}
	cassettes := make([]interface{}, 0, len(denominations))
	for i, denom := range denominations {
		notes := 200 + d.rng.Intn(1800)
		status := "OK"
		if notes < 400 {
			status = "LOW"
		}
		cassettes = append(cassettes, map[string]interface{}{
			"cassetteId":     fmt.Sprintf("%s-C%d", terminalID, i+1),
			"logicalNumber":  float64(i + 1),
			"physicalNumber": float64(i + 1),
			"type":           "CASH_OUT",
			"status":         status,
			"currency":       "USD",
			"denomination":   denom,
			"noteCount":      float64(notes),
			"totalValue":     denom * float64(notes),
			"percentage":     float64(notes) / 2000.0,
		})
	}

	var total float64
	for _, raw := range cassettes {
		c := raw.(map[string]interface{})
		total += c["totalValue"].(float64)
	}

	return []map[string]interface{}{
		{
			"businessCode":  "000",
			"technicalCode": "000",
			"externalId":    fmt.Sprintf("DEMO-%s", terminalID),
			"eventDate":     float64(now.UnixMilli()),
			"terminalCashInfo": map[string]interface{}{
				"cashInfo": cassettes,
				"total":    total,
				"currency": "USD",
			},
		},
	}
}

// runDemo replaces the network phases with fabricated payloads while
// still walking the regional, search, details and cash phases.
func (c *Collector) runDemo(ctx context.Context, snap *models.CycleSnapshot) {
	now := c.clk.Now()
	c.demo.roll()
	log.Info().Int("terminals", c.reg.Len()).Msg("Demo cycle: fabricating fleet data")

	c.phase(snap, "p3_regional", func() error {
		regional, err := c.proc.RegionalSnapshot(c.demo.dashboard(c.opts.RegionCode))
		if err != nil {
			return err
		}
		snap.Regional = regional
		return nil
	})

	var observations []processor.TerminalObservation
	c.phase(snap, "p4_terminal_search", func() error {
		seen := make(map[string]bool)
		for _, status := range models.VendorStatuses {
			for _, item := range c.demo.search(status) {
				obs := processor.ObservationFromSearch(item, status)
				if obs.TerminalID == "" || seen[obs.TerminalID] {
					continue
				}
				seen[obs.TerminalID] = true
				observations = append(observations, obs)
			}
		}
		return nil
	})

	c.phase(snap, "p5_terminal_details", func() error {
		for _, obs := range observations {
			for _, item := range c.demo.details(obs, now) {
				snap.Terminals = append(snap.Terminals, c.proc.TerminalRecord(item, obs))
			}
		}
		return nil
	})

	if c.opts.IncludeCashInfo && ctx.Err() == nil {
		c.phase(snap, "p6_cash_info", func() error {
			for _, obs := range observations {
				snap.Cash = append(snap.Cash, c.proc.CashRecord(obs.TerminalID, c.demo.cash(obs.TerminalID, now)))
			}
			return nil
		})
	}
}
