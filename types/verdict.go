package types

// Verdict is the categorical judgment an agent (or the engine) renders on
// one request.
type Verdict string

const (
	VerdictVerifiedTrue         Verdict = "verified_true"
	VerdictVerifiedFalse        Verdict = "verified_false"
	VerdictMisleading           Verdict = "misleading"
	VerdictUnverified           Verdict = "unverified"
	VerdictInsufficientEvidence Verdict = "insufficient_evidence"
	VerdictError                Verdict = "error"
)

// Score maps the verdict onto the signed axis used by weighted aggregation.
// Neutral verdicts (unverified, insufficient_evidence, error) score zero.
func (v Verdict) Score() float64 {
	switch v {
	case VerdictVerifiedTrue:
		return 1.0
	case VerdictVerifiedFalse:
		return -1.0
	case VerdictMisleading:
		return -0.7
	default:
		return 0
	}
}

// IsValid reports whether the verdict is one of the known values.
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictVerifiedTrue, VerdictVerifiedFalse, VerdictMisleading,
		VerdictUnverified, VerdictInsufficientEvidence, VerdictError:
		return true
	}
	return false
}
