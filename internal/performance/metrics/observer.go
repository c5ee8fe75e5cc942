package metrics

import "time"

// Observer receives every sample the Engine records. Implementations must be
// safe for concurrent use and must not block.
type Observer interface {
	ObserveRequest(name string, duration time.Duration, success bool, bytes int64)
	ObserveCheck(name string, passed bool)
	ObserveVUs(count int)
}
