package audit

// Severity weights for the 0-100 risk score.
const (
	weightCritical = 25
	weightHigh     = 15
	weightMedium   = 7
	weightLow      = 3

	maxRiskScore = 100
)

// Score reduces a finding set to a bounded risk score. It is pure and
// order-independent: each finding contributes its severity weight and the
// sum is clamped to [0,100].
func Score(findings []Finding) int {
	score := 0
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			score += weightCritical
		case SeverityHigh:
			score += weightHigh
		case SeverityMedium:
			score += weightMedium
		case SeverityLow:
			score += weightLow
		}
	}
	if score > maxRiskScore {
		return maxRiskScore
	}
	return score
}

// CountsBySeverity tallies findings per severity. All four keys are always
// present, zero-valued when nothing matched.
func CountsBySeverity(findings []Finding) map[Severity]int {
	counts := map[Severity]int{
		SeverityCritical: 0,
		SeverityHigh:     0,
		SeverityMedium:   0,
		SeverityLow:      0,
	}
	for _, f := range findings {
		if _, ok := counts[f.Severity]; ok {
			counts[f.Severity]++
		}
	}
	return counts
}
