package scoreboard

import (
	"context"
	"database/sql"
	"sort"
)

// Standing 排行榜中的一行
type Standing struct {
	Rank       int    `json:"rank"`
	TeamID     string `json:"teamId"`
	TeamName   string `json:"teamName"`
	Points     int    `json:"points"`
	SolveCount int    `json:"solveCount"`
	LastSolve  string `json:"lastSolve,omitempty"`
}

// SortStandings 按 (分数降序, 队名升序) 排序并写入绝对排名。
// 同分队伍按队名字典序给出确定的全序，分页时排名不会抖动。
func SortStandings(standings []Standing) {
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Points != standings[j].Points {
			return standings[i].Points > standings[j].Points
		}
		return standings[i].TeamName < standings[j].TeamName
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
}

// RankOf 计算某队伍的排名：1 + 分数严格更高的队伍数 + 同分但队名更靠前的队伍数。
// 队伍不存在时返回 false。
func RankOf(standings []Standing, teamID string) (int, bool) {
	var target *Standing
	for i := range standings {
		if standings[i].TeamID == teamID {
			target = &standings[i]
			break
		}
	}
	if target == nil {
		return 0, false
	}
	rank := 1
	for i := range standings {
		if standings[i].TeamID == teamID {
			continue
		}
		if standings[i].Points > target.Points {
			rank++
		} else if standings[i].Points == target.Points && standings[i].TeamName < target.TeamName {
			rank++
		}
	}
	return rank, true
}

// TotalPages 向上取整的页数，空榜也算1页
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}

// PageOf 取排好序的榜单的第 page 页（从1开始），行上的 Rank 是全局位置
func PageOf(standings []Standing, page, pageSize int) ([]Standing, int) {
	totalPages := TotalPages(len(standings), pageSize)
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(standings) {
		return []Standing{}, totalPages
	}
	end := start + pageSize
	if end > len(standings) {
		end = len(standings)
	}
	return standings[start:end], totalPages
}

// LoadStandings 从数据库加载全部有效队伍并排序。
// 排名是按需重算的派生数据，不落库；少量队伍全表扫描足够。
func LoadStandings(ctx context.Context, db *sql.DB) ([]Standing, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT t.id, t.name, t.points, COUNT(ts.challenge_id), MAX(ts.solved_at)
		FROM teams t
		LEFT JOIN team_solves ts ON ts.team_id = t.id
		WHERE t.status = 'active'
		GROUP BY t.id, t.name, t.points`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var standings []Standing
	for rows.Next() {
		var s Standing
		var lastSolve sql.NullTime
		if err := rows.Scan(&s.TeamID, &s.TeamName, &s.Points, &s.SolveCount, &lastSolve); err != nil {
			return nil, err
		}
		if lastSolve.Valid {
			s.LastSolve = lastSolve.Time.Format("2006-01-02 15:04:05")
		}
		standings = append(standings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	SortStandings(standings)
	return standings, nil
}
