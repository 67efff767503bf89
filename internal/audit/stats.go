package audit

// Statistics is the per-scan reduction of a finding set.
type Statistics struct {
	Total         int `json:"total_findings"`
	CriticalCount int `json:"critical_count"`
	HighCount     int `json:"high_count"`
	MediumCount   int `json:"medium_count"`
	LowCount      int `json:"low_count"`
	RiskScore     int `json:"risk_score"`
}

// BuildStatistics computes totals, per-severity counts and the risk score
// for a finding set.
func BuildStatistics(findings []Finding) Statistics {
	counts := CountsBySeverity(findings)
	return Statistics{
		Total:         len(findings),
		CriticalCount: counts[SeverityCritical],
		HighCount:     counts[SeverityHigh],
		MediumCount:   counts[SeverityMedium],
		LowCount:      counts[SeverityLow],
		RiskScore:     Score(findings),
	}
}
