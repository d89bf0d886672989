package scoring

import "sort"

// RankEntries orders entries by total score descending and assigns the
// 1-based sequential rank. Exactly equal totals break the tie by ascending
// user identifier so repeated runs over identical inputs always produce the
// same assignment. The slice is mutated in place and returned.
func RankEntries(entries []LeaderboardEntry) []LeaderboardEntry {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		return entries[i].UserID < entries[j].UserID
	})
	for index := range entries {
		entries[index].Rank = index + 1
	}
	return entries
}
