// Package clock fixes the collector's wall clock to Dili time (UTC+9,
// no DST). Every timestamp the collector persists or embeds in JSONB
// is produced through this package.
package clock

import (
	"time"
)

// Dili is the canonical zone for all persisted timestamps.
var Dili = time.FixedZone("Asia/Dili", 9*60*60)

// faultLayout is the vendor-facing rendering of fault creation dates.
const faultLayout = "02:01:2006 15:04:05"

// Clock supplies the current Dili wall-clock time. The collector takes
// a Clock rather than calling time.Now so the processor stays pure and
// tests can freeze time.
type Clock interface {
	Now() time.Time
}

// System is the real clock.
type System struct{}

func (System) Now() time.Time {
	return time.Now().In(Dili)
}

// Fixed is a frozen clock for tests and demo cycles.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time {
	return f.T.In(Dili)
}

// In converts any timestamp to Dili. A zero time passes through
// unchanged so callers can detect "no value" downstream.
func In(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.In(Dili)
}

// FromEpochMillis converts a vendor millisecond epoch (UTC) to Dili.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(Dili)
}

// FormatFault renders a timestamp as DD:MM:YYYY HH:MM:SS, the shape
// the fault_data blob carries.
func FormatFault(t time.Time) string {
	return t.In(Dili).Format(faultLayout)
}

// ISO renders a timestamp as ISO-8601 with the +09:00 offset, for
// metadata blobs.
func ISO(t time.Time) string {
	return t.In(Dili).Format(time.RFC3339)
}
