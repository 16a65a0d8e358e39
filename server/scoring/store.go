package scoring

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore 基于 database/sql 的存储实现
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetChallenge(ctx context.Context, challengeID string) (*Challenge, error) {
	var ch Challenge
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, flag, points FROM challenges WHERE id = $1`, challengeID).
		Scan(&ch.ID, &ch.Title, &ch.Flag, &ch.Points)
	if err == sql.ErrNoRows {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *PostgresStore) UserInTeam(ctx context.Context, userID, teamID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE id = $1 AND team_id = $2`, userID, teamID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PostgresStore) AppendAttempt(ctx context.Context, a Attempt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, team_id, user_id, challenge_id, submitted_flag, is_correct, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.TeamID, a.UserID, a.ChallengeID, a.Flag, a.Correct, a.SubmittedAt)
	return err
}

// AwardSolve 在同一事务里写入解题记录并累加队伍分数。
// team_solves 的主键 (team_id, challenge_id) 配合 ON CONFLICT DO NOTHING
// 保证并发的两个正确提交只有一个能加分，失败方看到"已解出"。
func (s *PostgresStore) AwardSolve(ctx context.Context, teamID, challengeID, userID string, points int, solvedAt time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO team_solves (team_id, challenge_id, user_id, solved_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (team_id, challenge_id) DO NOTHING`,
		teamID, challengeID, userID, solvedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// 已有解题记录，不再加分
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE teams SET points = points + $1, updated_at = NOW() WHERE id = $2`,
		points, teamID); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
