package scoring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 提交结果原因
type Reason string

const (
	ReasonCorrect       Reason = "CORRECT"
	ReasonIncorrectFlag Reason = "INCORRECT_FLAG"
	ReasonAlreadySolved Reason = "ALREADY_SOLVED"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrNotTeamMember     = errors.New("user does not belong to team")
)

// Result 单次提交的结构化结果。持久化错误通过 error 返回，不放在 Result 里。
type Result struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason"`
	Points   int    `json:"points,omitempty"`
}

// Challenge 判分所需的题目信息
type Challenge struct {
	ID     string
	Title  string
	Flag   string
	Points int
}

// Attempt 一条提交记录（审计日志，只追加）
type Attempt struct {
	ID          string
	TeamID      string
	UserID      string
	ChallengeID string
	Flag        string
	Correct     bool
	SubmittedAt time.Time
}

// Store 判分引擎依赖的存储接口
type Store interface {
	// GetChallenge 题目不存在时返回 ErrChallengeNotFound
	GetChallenge(ctx context.Context, challengeID string) (*Challenge, error)
	// UserInTeam 校验用户确实属于该队伍
	UserInTeam(ctx context.Context, userID, teamID string) (bool, error)
	// AppendAttempt 追加一条提交记录，每次提交恰好写一条
	AppendAttempt(ctx context.Context, a Attempt) error
	// AwardSolve 条件写入：仅当该队伍首次解出该题时记录解题并加分，
	// 返回是否真的记上了。必须原子执行，两个并发的正确提交只能有一个成功。
	AwardSolve(ctx context.Context, teamID, challengeID, userID string, points int, solvedAt time.Time) (bool, error)
}

// Engine 判分引擎
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// SubmitFlag 处理一次flag提交。
// 流程：校验成员关系 -> 取题目 -> 去掉首尾空白后精确比较（区分大小写）->
// 无论对错都落一条提交记录 -> 答对时原子地记录解题并加分。
// 同一(队伍, 题目)只会加分一次，重复答对返回 ALREADY_SOLVED。
func (e *Engine) SubmitFlag(ctx context.Context, userID, teamID, challengeID, submittedFlag string) (Result, error) {
	ok, err := e.store.UserInTeam(ctx, userID, teamID)
	if err != nil {
		return Result{}, fmt.Errorf("check team membership: %w", err)
	}
	if !ok {
		return Result{}, ErrNotTeamMember
	}

	ch, err := e.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return Result{}, err
	}

	submitted := strings.TrimSpace(submittedFlag)
	correct := submitted == ch.Flag

	now := time.Now()
	attempt := Attempt{
		ID:          uuid.NewString(),
		TeamID:      teamID,
		UserID:      userID,
		ChallengeID: ch.ID,
		Flag:        submitted,
		Correct:     correct,
		SubmittedAt: now,
	}
	if err := e.store.AppendAttempt(ctx, attempt); err != nil {
		return Result{}, fmt.Errorf("append attempt: %w", err)
	}

	if !correct {
		return Result{Accepted: false, Reason: ReasonIncorrectFlag}, nil
	}

	awarded, err := e.store.AwardSolve(ctx, teamID, ch.ID, userID, ch.Points, now)
	if err != nil {
		return Result{}, fmt.Errorf("award solve: %w", err)
	}
	if !awarded {
		return Result{Accepted: false, Reason: ReasonAlreadySolved}, nil
	}

	return Result{Accepted: true, Reason: ReasonCorrect, Points: ch.Points}, nil
}
