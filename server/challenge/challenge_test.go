package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory("Web"))
	assert.True(t, ValidCategory("Reverse Engineering"))
	assert.False(t, ValidCategory("web"))
	assert.False(t, ValidCategory(""))
	assert.False(t, ValidCategory("Hardware"))
}

func TestValidDifficulty(t *testing.T) {
	for _, d := range []string{"Easy", "Medium", "Hard"} {
		assert.True(t, ValidDifficulty(d))
	}
	assert.False(t, ValidDifficulty("easy"))
	assert.False(t, ValidDifficulty("Insane"))
}
