package scenario

// Check labels, one per verification point. The set is stable so runs can be
// compared.
const (
	CheckPutStatus = "PUT 204"

	CheckGetStatus  = "GET 200"
	CheckGetMatches = "GET body matches PUT"

	CheckMGetStatus  = "MGET 200"
	CheckMGetOrdered = "MGET returns 2 ordered records"
	CheckMGetPresent = "MGET present record matches"
	CheckMGetAbsent  = "MGET absent record is null"

	CheckDeleteStatus = "DELETE 204"

	CheckGoneStatus = "GET after DELETE 404"
	CheckGoneNull   = "GET after DELETE value is null"
)

// Checks lists every label in execution order.
var Checks = []string{
	CheckPutStatus,
	CheckGetStatus,
	CheckGetMatches,
	CheckMGetStatus,
	CheckMGetOrdered,
	CheckMGetPresent,
	CheckMGetAbsent,
	CheckDeleteStatus,
	CheckGoneStatus,
	CheckGoneNull,
}

// CheckResult is the outcome of one verification point.
type CheckResult struct {
	Name   string
	Passed bool
}

// CheckRecorder aggregates check outcomes.
type CheckRecorder interface {
	RecordCheck(name string, passed bool)
}
