package scoring

import "testing"

func entryWithTotal(userID string, total float64) LeaderboardEntry {
	return LeaderboardEntry{
		GroupID:    "group-1",
		UserID:     userID,
		Period:     PeriodWeekly,
		TotalScore: total,
	}
}

func TestRankEntriesOrdersByTotalDescending(t *testing.T) {
	entries := RankEntries([]LeaderboardEntry{
		entryWithTotal("user-c", 12),
		entryWithTotal("user-a", 117),
		entryWithTotal("user-b", 48.5),
	})

	expectedOrder := []string{"user-a", "user-b", "user-c"}
	for index, expected := range expectedOrder {
		if entries[index].UserID != expected {
			t.Fatalf("expected %s at position %d, got %s", expected, index, entries[index].UserID)
		}
		if entries[index].Rank != index+1 {
			t.Fatalf("expected rank %d, got %d", index+1, entries[index].Rank)
		}
	}
}

func TestRankEntriesBreaksTiesByUserID(t *testing.T) {
	entries := RankEntries([]LeaderboardEntry{
		entryWithTotal("user-z", 50),
		entryWithTotal("user-a", 50),
		entryWithTotal("user-m", 50),
	})

	expectedOrder := []string{"user-a", "user-m", "user-z"}
	for index, expected := range expectedOrder {
		if entries[index].UserID != expected {
			t.Fatalf("expected %s at position %d, got %s", expected, index, entries[index].UserID)
		}
	}
}

func TestRankEntriesContiguity(t *testing.T) {
	entries := RankEntries([]LeaderboardEntry{
		entryWithTotal("user-a", 10),
		entryWithTotal("user-b", 10),
		entryWithTotal("user-c", 300),
		entryWithTotal("user-d", 0),
		entryWithTotal("user-e", 7.25),
	})

	seen := make(map[int]bool)
	previousTotal := 0.0
	for index, entry := range entries {
		if seen[entry.Rank] {
			t.Fatalf("duplicate rank %d", entry.Rank)
		}
		seen[entry.Rank] = true
		if entry.Rank != index+1 {
			t.Fatalf("ranks must be sequential, expected %d got %d", index+1, entry.Rank)
		}
		if index > 0 && entry.TotalScore > previousTotal {
			t.Fatalf("total score must not increase with rank: %v after %v", entry.TotalScore, previousTotal)
		}
		previousTotal = entry.TotalScore
	}
	for expected := 1; expected <= len(entries); expected++ {
		if !seen[expected] {
			t.Fatalf("missing rank %d", expected)
		}
	}
}

func TestRankEntriesEmptySlice(t *testing.T) {
	if entries := RankEntries(nil); len(entries) != 0 {
		t.Fatalf("expected empty result, got %d entries", len(entries))
	}
}
