package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleFor(t *testing.T) {
	tests := []struct {
		points int
		title  string
	}{
		{0, "Script Kiddie"},
		{500, "Script Kiddie"},
		{501, "Hacker in Training"},
		{1000, "Hacker in Training"},
		{1001, "Elite Hacker"},
		{2000, "Elite Hacker"},
		{2001, "Cyber Ninja"},
		{999999, "Cyber Ninja"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.title, TitleFor(tt.points), "points=%d", tt.points)
	}
}

func TestTitleForNegativePoints(t *testing.T) {
	// 正常玩法下分数单调不减，负分按未知处理
	assert.Equal(t, "Unknown", TitleFor(-1))
}
