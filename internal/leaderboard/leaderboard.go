// Package leaderboard ranks participants by cumulative score.
package leaderboard

import (
	"cmp"
	"slices"

	"github.com/victornm/quizroom/internal/domain"
)

// Rank returns a copy of entries sorted by score in descending order.
// Entries with equal scores keep their order in the input, which callers keep in insertion order.
func Rank(entries []domain.LeaderboardEntry) []domain.LeaderboardEntry {
	ranked := slices.Clone(entries)
	if ranked == nil {
		ranked = []domain.LeaderboardEntry{}
	}

	slices.SortStableFunc(ranked, func(a, b domain.LeaderboardEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})

	return ranked
}

// Top returns the name of the highest ranked entry, or domain.NoWinner when there is none.
func Top(ranked []domain.LeaderboardEntry) string {
	if len(ranked) == 0 {
		return domain.NoWinner
	}

	return ranked[0].Name
}
