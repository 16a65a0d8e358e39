package scoreboard

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankOfTieBrokenByName(t *testing.T) {
	standings := []Standing{
		{TeamID: "b", TeamName: "Beta", Points: 300},
		{TeamID: "a", TeamName: "Alpha", Points: 300},
		{TeamID: "g", TeamName: "Gamma", Points: 500},
	}

	rank, ok := RankOf(standings, "g")
	require.True(t, ok)
	assert.Equal(t, 1, rank)

	rank, ok = RankOf(standings, "a")
	require.True(t, ok)
	assert.Equal(t, 2, rank)

	rank, ok = RankOf(standings, "b")
	require.True(t, ok)
	assert.Equal(t, 3, rank)

	_, ok = RankOf(standings, "missing")
	assert.False(t, ok)
}

func TestSortStandingsOrderAndRank(t *testing.T) {
	standings := []Standing{
		{TeamID: "b", TeamName: "Beta", Points: 300},
		{TeamID: "a", TeamName: "Alpha", Points: 300},
		{TeamID: "g", TeamName: "Gamma", Points: 500},
		{TeamID: "z", TeamName: "Zero", Points: 0},
	}
	SortStandings(standings)

	assert.Equal(t, []string{"Gamma", "Alpha", "Beta", "Zero"}, func() []string {
		names := make([]string, len(standings))
		for i, s := range standings {
			names[i] = s.TeamName
		}
		return names
	}())
	for i, s := range standings {
		assert.Equal(t, i+1, s.Rank)
	}

	// 排序后 RankOf 与行上的绝对排名一致
	for _, s := range standings {
		rank, ok := RankOf(standings, s.TeamID)
		require.True(t, ok)
		assert.Equal(t, s.Rank, rank)
	}
}

func TestPageOfPagination(t *testing.T) {
	standings := make([]Standing, 25)
	for i := range standings {
		standings[i] = Standing{
			TeamID:   fmt.Sprintf("t%02d", i),
			TeamName: fmt.Sprintf("Team%02d", i),
			Points:   1000 - i*10,
		}
	}
	SortStandings(standings)

	page1, totalPages := PageOf(standings, 1, 10)
	assert.Equal(t, 3, totalPages)
	require.Len(t, page1, 10)
	assert.Equal(t, 1, page1[0].Rank)

	page3, totalPages := PageOf(standings, 3, 10)
	assert.Equal(t, 3, totalPages)
	require.Len(t, page3, 5)
	// 页内排名是全局位置，不会在页边界重置
	assert.Equal(t, 21, page3[0].Rank)
	assert.Equal(t, 25, page3[4].Rank)

	empty, totalPages := PageOf(standings, 4, 10)
	assert.Equal(t, 3, totalPages)
	assert.Empty(t, empty)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 1, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 2, TotalPages(11, 10))
	assert.Equal(t, 3, TotalPages(25, 10))
	assert.Equal(t, 1, TotalPages(5, 0))
}

func TestPageOfEmptyStandings(t *testing.T) {
	teams, totalPages := PageOf(nil, 1, 10)
	assert.Empty(t, teams)
	assert.Equal(t, 1, totalPages)
}
