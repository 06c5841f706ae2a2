package bot

// RateLimit is the advisory quota estimate after the last completed call.
// Nothing in this package waits on it.
type RateLimit struct {
	RemainingRequests int
	RemainingSeconds  int
}

// DefaultRateLimit applies when a binding leaves a field at zero.
var DefaultRateLimit = RateLimit{RemainingRequests: 50, RemainingSeconds: 5}

func (r RateLimit) withDefaults() RateLimit {
	if r.RemainingRequests == 0 {
		r.RemainingRequests = DefaultRateLimit.RemainingRequests
	}
	if r.RemainingSeconds == 0 {
		r.RemainingSeconds = DefaultRateLimit.RemainingSeconds
	}
	return r
}
