package scenario

// DefaultTTL is the expiry in seconds attached to even-iteration writes.
const DefaultTTL = 50

// AbsentSuffix turns an iteration key into a key that is never written.
const AbsentSuffix = "__absent"

// Plan is the set of optional steps an iteration performs. The mandatory
// write, read-back and delete always run.
type Plan struct {
	UseTTL          bool
	BatchRead       bool
	ReadAfterDelete bool
}

// PlanFor returns the plan for a 0-based iteration counter.
//
//	UseTTL          counter % 2 == 0
//	BatchRead       counter % 10 == 0
//	ReadAfterDelete counter % 5 == 0
func PlanFor(iteration int64) Plan {
	return Plan{
		UseTTL:          iteration%2 == 0,
		BatchRead:       iteration%10 == 0,
		ReadAfterDelete: iteration%5 == 0,
	}
}
