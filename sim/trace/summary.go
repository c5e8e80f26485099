package trace

import "strconv"

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LedgerSummary aggregates counts from a Ledger, mirroring the teacher's
// TraceSummary shape for the equivalent decision-trace package.
type LedgerSummary struct {
	TotalHistoryRecords int
	TotalAuditRecords   int
	RecordsByAttribute   map[string]int
}

// Summarize computes aggregate statistics from a Ledger. Safe for nil or
// empty ledgers (returns zero-value fields).
func Summarize(l *Ledger) *LedgerSummary {
	summary := &LedgerSummary{
		RecordsByAttribute: make(map[string]int),
	}
	if l == nil {
		return summary
	}
	summary.TotalHistoryRecords = len(l.History)
	summary.TotalAuditRecords = len(l.Audit)
	for _, h := range l.History {
		summary.RecordsByAttribute[h.Attribute]++
	}
	return summary
}
