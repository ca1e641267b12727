package models

// Canonical terminal states. The vendor vocabulary is wider; Collapse
// maps every vendor value onto one of these.
const (
	StatusAvailable    = "AVAILABLE"
	StatusWarning      = "WARNING"
	StatusWounded      = "WOUNDED"
	StatusZombie       = "ZOMBIE"
	StatusOutOfService = "OUT_OF_SERVICE"
)

// VendorStatuses is the full set of filters the terminal search phase
// iterates, in the order the searches are issued.
var VendorStatuses = []string{
	"WOUNDED",
	"HARD",
	"CASH",
	"UNAVAILABLE",
	"AVAILABLE",
	"WARNING",
	"ZOMBIE",
	"OUT_OF_SERVICE",
}

var collapse = map[string]string{
	"AVAILABLE":      StatusAvailable,
	"WARNING":        StatusWarning,
	"WOUNDED":        StatusWounded,
	"HARD":           StatusWounded,
	"CASH":           StatusWounded,
	"ZOMBIE":         StatusZombie,
	"OUT_OF_SERVICE": StatusOutOfService,
	"UNAVAILABLE":    StatusOutOfService,
}

// Collapse maps a vendor status onto the canonical vocabulary. Unknown
// vendor values collapse to OUT_OF_SERVICE so the mapping stays total.
func Collapse(vendor string) string {
	if c, ok := collapse[vendor]; ok {
		return c
	}
	return StatusOutOfService
}

// IsOperational reports whether a canonical status counts toward the
// availability percentage (AVAILABLE and WARNING both do).
func IsOperational(canonical string) bool {
	return canonical == StatusAvailable || canonical == StatusWarning
}
