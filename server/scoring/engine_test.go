package scoring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
	members    map[string]string // userID -> teamID
	attempts   []Attempt
	solves     map[string]map[string]bool // teamID -> challengeID -> solved
	points     map[string]int             // teamID -> points
	failAward  bool
}

func newMemStore() *memStore {
	return &memStore{
		challenges: make(map[string]*Challenge),
		members:    make(map[string]string),
		solves:     make(map[string]map[string]bool),
		points:     make(map[string]int),
	}
}

func (s *memStore) GetChallenge(ctx context.Context, id string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	c := *ch
	return &c, nil
}

func (s *memStore) UserInTeam(ctx context.Context, userID, teamID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[userID] == teamID, nil
}

func (s *memStore) AppendAttempt(ctx context.Context, a Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
	return nil
}

func (s *memStore) AwardSolve(ctx context.Context, teamID, challengeID, userID string, points int, solvedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAward {
		return false, context.DeadlineExceeded
	}
	if s.solves[teamID] == nil {
		s.solves[teamID] = make(map[string]bool)
	}
	if s.solves[teamID][challengeID] {
		return false, nil
	}
	s.solves[teamID][challengeID] = true
	s.points[teamID] += points
	return true, nil
}

// sumSolvedPoints 按解题集合重新计算应得总分
func (s *memStore) sumSolvedPoints(teamID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for cid, ok := range s.solves[teamID] {
		if ok {
			total += s.challenges[cid].Points
		}
	}
	return total
}

func newTestEngine() (*Engine, *memStore) {
	store := newMemStore()
	store.challenges["c1"] = &Challenge{ID: "c1", Title: "Basic Injection", Flag: "FLAG{x}", Points: 100}
	store.challenges["c2"] = &Challenge{ID: "c2", Title: "Broken Cipher", Flag: "FLAG{y}", Points: 250}
	store.members["u1"] = "t1"
	store.members["u2"] = "t1"
	store.members["u3"] = "t2"
	return NewEngine(store), store
}

func TestSubmitFlagCorrect(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()

	res, err := engine.SubmitFlag(ctx, "u1", "t1", "c1", "FLAG{x}")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, ReasonCorrect, res.Reason)
	assert.Equal(t, 100, res.Points)
	assert.Equal(t, 100, store.points["t1"])
	require.Len(t, store.attempts, 1)
	assert.True(t, store.attempts[0].Correct)
}

func TestSubmitFlagTrimAndCaseSensitive(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()

	tests := []struct {
		name     string
		flag     string
		accepted bool
	}{
		{"exact", "FLAG{y}", true},
		{"surrounding whitespace trimmed", "  FLAG{y}\t\n", true},
		{"case mismatch rejected", "flag{y}", false},
		{"inner whitespace not removed", "FLAG{ y }", false},
		{"empty", "   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine2, _ := newTestEngine()
			res, err := engine2.SubmitFlag(ctx, "u1", "t1", "c2", tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, res.Accepted)
		})
	}

	// 同一引擎上答错不会留下任何得分
	res, err := engine.SubmitFlag(ctx, "u1", "t1", "c2", "flag{y}")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, ReasonIncorrectFlag, res.Reason)
}

func TestSubmitFlagDuplicateNotReawarded(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()

	first, err := engine.SubmitFlag(ctx, "u1", "t1", "c1", "FLAG{x}")
	require.NoError(t, err)
	assert.True(t, first.Accepted)

	second, err := engine.SubmitFlag(ctx, "u2", "t1", "c1", "FLAG{x}")
	require.NoError(t, err)
	assert.False(t, second.Accepted)
	assert.Equal(t, ReasonAlreadySolved, second.Reason)

	assert.Equal(t, 100, store.points["t1"])
	// 两次提交都要留下审计记录
	assert.Len(t, store.attempts, 2)
}

func TestSubmitFlagConcurrentSingleAward(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()

	const workers = 16
	results := make([]Result, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			user := "u1"
			if i%2 == 1 {
				user = "u2"
			}
			res, err := engine.SubmitFlag(ctx, user, "t1", "c1", "FLAG{x}")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	close(start)
	wg.Wait()

	accepted := 0
	for _, r := range results {
		if r.Accepted {
			accepted++
		} else {
			assert.Equal(t, ReasonAlreadySolved, r.Reason)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 100, store.points["t1"])
	assert.Len(t, store.attempts, workers)
}

func TestSubmitFlagIncorrectNeverMutates(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := engine.SubmitFlag(ctx, "u1", "t1", "c1", "FLAG{wrong}")
		require.NoError(t, err)
		assert.False(t, res.Accepted)
	}
	assert.Equal(t, 0, store.points["t1"])
	assert.Empty(t, store.solves["t1"])
	// 每次提交恰好一条审计记录
	assert.Len(t, store.attempts, 5)
}

func TestSubmitFlagPointsMatchSolvedSet(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()

	submissions := []struct {
		user, team, challenge, flag string
	}{
		{"u1", "t1", "c1", "FLAG{x}"},
		{"u2", "t1", "c1", "FLAG{x}"}, // 重复
		{"u1", "t1", "c2", "flag{y}"}, // 错误
		{"u2", "t1", "c2", " FLAG{y} "},
		{"u3", "t2", "c1", "FLAG{x}"},
		{"u3", "t2", "c2", "nope"},
	}
	for _, s := range submissions {
		_, err := engine.SubmitFlag(ctx, s.user, s.team, s.challenge, s.flag)
		require.NoError(t, err)
	}

	// 不变式：队伍分数 == 解题集合中题目分值之和
	assert.Equal(t, store.sumSolvedPoints("t1"), store.points["t1"])
	assert.Equal(t, store.sumSolvedPoints("t2"), store.points["t2"])
	assert.Equal(t, 350, store.points["t1"])
	assert.Equal(t, 100, store.points["t2"])
}

func TestSubmitFlagErrors(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()

	// 用户不在该队伍：授权错误，不是判分结果
	_, err := engine.SubmitFlag(ctx, "u3", "t1", "c1", "FLAG{x}")
	assert.ErrorIs(t, err, ErrNotTeamMember)
	assert.Empty(t, store.attempts)

	// 题目不存在
	_, err = engine.SubmitFlag(ctx, "u1", "t1", "missing", "FLAG{x}")
	assert.ErrorIs(t, err, ErrChallengeNotFound)

	// 加分阶段的持久化错误要作为 error 透出，且审计记录已写入
	store.failAward = true
	_, err = engine.SubmitFlag(ctx, "u1", "t1", "c1", "FLAG{x}")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotTeamMember)
	assert.NotErrorIs(t, err, ErrChallengeNotFound)
	assert.Len(t, store.attempts, 1)
	assert.Equal(t, 0, store.points["t1"])
}
