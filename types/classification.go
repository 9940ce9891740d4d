package types

// Verdict is the preserve/delete decision for a resource within a run.
type Verdict string

const (
	VerdictPreserve Verdict = "preserve"
	VerdictDelete   Verdict = "delete"
)

// Classification pairs a verdict with the rule that produced it.
// Exactly one Classification exists per resource per run; never mutated.
type Classification struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
}

// Preserve builds a preserve classification with its reason.
func Preserve(reason string) Classification {
	return Classification{Verdict: VerdictPreserve, Reason: reason}
}

// Delete builds a delete classification with its reason.
func Delete(reason string) Classification {
	return Classification{Verdict: VerdictDelete, Reason: reason}
}
