package model

// MemberStats is the per-guild aggregate read model. Active and NewThisWeek
// share one 7-day cutoff computed when the stats are built.
type MemberStats struct {
	TotalMembers  int64 `json:"total_members"`
	ActiveMembers int64 `json:"active_members"`
	NewThisWeek   int64 `json:"new_this_week"`
}
