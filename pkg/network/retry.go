package network

import "time"

// Clock is injected so retry loops can run without real time passing
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// Verdict is how a RetryPolicy reacts to a polled result
type Verdict int

const (
	VerdictSucceeded Verdict = iota
	VerdictKeepPolling
	VerdictRetry
)

// RetryPolicy bounds a poll loop. Every poll counts against MaxAttempts,
// whatever the verdict.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Classify    func(ResultCode) Verdict
}

// StationPolicy keeps polling while the result is undecided or the network
// is not (yet) visible, and re-issues the same credentials on a password
// failure since those are sometimes reported for correct passwords.
func StationPolicy(attempts int, delay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		Delay:       delay,
		Classify: func(r ResultCode) Verdict {
			switch r {
			case ResultConnected:
				return VerdictSucceeded
			case ResultBadCredentials:
				return VerdictRetry
			}
			return VerdictKeepPolling
		},
	}
}

// Run polls until success or until MaxAttempts polls have been made, and
// returns the last result. a tracks the remaining budget.
func (p RetryPolicy) Run(clock Clock, poll func() ResultCode, retry func(), a *Attempt) ResultCode {
	a.RetriesRemaining = p.MaxAttempts
	for a.RetriesRemaining > 0 {
		a.RetriesRemaining--
		a.LastResult = poll()

		verdict := p.Classify(a.LastResult)
		if verdict == VerdictSucceeded || a.RetriesRemaining == 0 {
			break
		}
		if verdict == VerdictRetry {
			retry()
		}
		clock.Sleep(p.Delay)
	}
	return a.LastResult
}
