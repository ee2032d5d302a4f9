package analysis

// Severity buckets shared by the diversity analyzer and the echo chamber
// detector. The cut-offs are calibration values; changing them changes the
// meaning of every stored result, so they must stay exactly as they are.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
	SeveritySevere = "severe"
)

const (
	severitySevereCutoff = 0.8
	severityHighCutoff   = 0.6
	severityMediumCutoff = 0.4
)

func severityFor(score float64) string {
	switch {
	case score >= severitySevereCutoff:
		return SeveritySevere
	case score >= severityHighCutoff:
		return SeverityHigh
	case score >= severityMediumCutoff:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
