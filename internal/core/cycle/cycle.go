package cycle

// Outcome classifies one scheduler cycle. The host decides what to do with
// it: a Retryable cycle left the record back in the pending pool, a Fatal
// one needs an operator, a Skip did no pipeline work at all.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeSkip
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeSkip:
		return "SKIP"
	case OutcomeRetryable:
		return "RETRYABLE"
	case OutcomeFatal:
		return "FATAL"
	}
	return "UNKNOWN"
}

// Result is what one RunOnce reports. PipelineID is empty when the cycle
// never claimed a record.
type Result struct {
	Outcome    Outcome
	PipelineID string
	Err        error
}
