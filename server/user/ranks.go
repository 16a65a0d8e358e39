package user

// RankTitle 按分数段授予的称号
type RankTitle struct {
	Name      string `json:"name"`
	MinPoints int    `json:"minPoints"`
	MaxPoints int    `json:"maxPoints"` // -1 表示不设上限
}

// 分数段称号表
var RankTitles = []RankTitle{
	{Name: "Script Kiddie", MinPoints: 0, MaxPoints: 500},
	{Name: "Hacker in Training", MinPoints: 501, MaxPoints: 1000},
	{Name: "Elite Hacker", MinPoints: 1001, MaxPoints: 2000},
	{Name: "Cyber Ninja", MinPoints: 2001, MaxPoints: -1},
}

// TitleFor 根据分数取称号
func TitleFor(points int) string {
	for _, r := range RankTitles {
		if points >= r.MinPoints && (r.MaxPoints < 0 || points <= r.MaxPoints) {
			return r.Name
		}
	}
	return "Unknown"
}
