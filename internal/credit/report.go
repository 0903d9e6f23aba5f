package credit

import (
	"sort"
	"time"
)

const riskReportTop = 10

// BuildRiskReport ranks per-customer aggregates into the top risk and
// top safe tails. Pure function so report ordering is testable without
// storage.
func BuildRiskReport(rows []RiskCustomer, now time.Time) RiskReport {
	var risk, safe []RiskCustomer
	for _, row := range rows {
		switch row.RiskLevel {
		case RiskHigh, RiskVeryHigh:
			risk = append(risk, row)
		default:
			safe = append(safe, row)
		}
	}

	sort.SliceStable(risk, func(i, j int) bool {
		if risk[i].UsagePercent != risk[j].UsagePercent {
			return risk[i].UsagePercent > risk[j].UsagePercent
		}
		if risk[i].MaxDaysOverdue != risk[j].MaxDaysOverdue {
			return risk[i].MaxDaysOverdue > risk[j].MaxDaysOverdue
		}
		return risk[i].Score < risk[j].Score
	})
	sort.SliceStable(safe, func(i, j int) bool {
		return safe[i].Score > safe[j].Score
	})

	if len(risk) > riskReportTop {
		risk = risk[:riskReportTop]
	}
	if len(safe) > riskReportTop {
		safe = safe[:riskReportTop]
	}
	return RiskReport{
		GeneratedAt:    now,
		TotalCustomers: len(rows),
		TopRisk:        risk,
		TopSafe:        safe,
	}
}
