package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ntarasov/bastion/internal/models"
)

type memberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepository(pool *pgxpool.Pool) MemberRepository {
	return &memberRepo{pool: pool}
}

func (r *memberRepo) CreateWithRole(ctx context.Context, member *models.Member, roleID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	member.JoinedAt = time.Now().UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO members (guild_id, user_id, joined_at) VALUES ($1, $2, $3)`,
		member.GuildID, member.UserID, member.JoinedAt,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO member_roles (guild_id, user_id, role_id) VALUES ($1, $2, $3)`,
		member.GuildID, member.UserID, roleID,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *memberRepo) GetByGuildAndUser(ctx context.Context, guildID, userID int64) (*models.Member, error) {
	member := &models.Member{}
	err := r.pool.QueryRow(ctx,
		`SELECT guild_id, user_id, joined_at FROM members
		 WHERE guild_id = $1 AND user_id = $2`, guildID, userID,
	).Scan(&member.GuildID, &member.UserID, &member.JoinedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	member.Roles, err = r.getMemberRoleIDs(ctx, guildID, userID)
	return member, err
}

func (r *memberRepo) GetByGuildID(ctx context.Context, guildID int64, limit, offset int) ([]models.Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT guild_id, user_id, joined_at FROM members
		 WHERE guild_id = $1
		 ORDER BY joined_at
		 LIMIT $2 OFFSET $3`, guildID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.GuildID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range members {
		members[i].Roles, err = r.getMemberRoleIDs(ctx, guildID, members[i].UserID)
		if err != nil {
			return nil, err
		}
	}
	return members, nil
}

func (r *memberRepo) Delete(ctx context.Context, guildID, userID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM member_roles WHERE guild_id = $1 AND user_id = $2`,
		guildID, userID,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM members WHERE guild_id = $1 AND user_id = $2`,
		guildID, userID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *memberRepo) AddRole(ctx context.Context, guildID, userID, roleID int64) error {
	// Re-assigning the same role is a silent no-op.
	_, err := r.pool.Exec(ctx,
		`INSERT INTO member_roles (guild_id, user_id, role_id) VALUES ($1, $2, $3)
		 ON CONFLICT (guild_id, user_id, role_id) DO NOTHING`,
		guildID, userID, roleID,
	)
	return err
}

func (r *memberRepo) RemoveRole(ctx context.Context, guildID, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM member_roles WHERE guild_id = $1 AND user_id = $2 AND role_id = $3`,
		guildID, userID, roleID,
	)
	return err
}

func (r *memberRepo) getMemberRoleIDs(ctx context.Context, guildID, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT mr.role_id FROM member_roles mr
		 INNER JOIN roles ro ON ro.id = mr.role_id
		 WHERE mr.guild_id = $1 AND mr.user_id = $2
		 ORDER BY ro.position`, guildID, userID,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
