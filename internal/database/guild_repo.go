package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ntarasov/bastion/internal/models"
)

type guildRepo struct {
	pool *pgxpool.Pool
}

func NewGuildRepository(pool *pgxpool.Pool) GuildRepository {
	return &guildRepo{pool: pool}
}

func (r *guildRepo) CreateWithDefaults(ctx context.Context, guild *models.Guild, ownerRole, generalRole *models.Role, channels []models.Channel) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO guilds (id, name, owner_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		guild.ID, guild.Name, guild.OwnerID, guild.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, role := range []*models.Role{ownerRole, generalRole} {
		_, err = tx.Exec(ctx,
			`INSERT INTO roles (id, guild_id, name, color, permissions, position, is_system)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			role.ID, role.GuildID, role.Name, role.Color, role.Permissions, role.Position, role.IsSystem,
		)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO members (guild_id, user_id, joined_at)
		 VALUES ($1, $2, $3)`,
		guild.ID, guild.OwnerID, guild.CreatedAt,
	)
	if err != nil {
		return err
	}

	// The only place an Owner assignment is ever written.
	batch := &pgx.Batch{}
	batch.Queue(
		`INSERT INTO member_roles (guild_id, user_id, role_id) VALUES ($1, $2, $3)`,
		guild.ID, guild.OwnerID, ownerRole.ID,
	)
	batch.Queue(
		`INSERT INTO member_roles (guild_id, user_id, role_id) VALUES ($1, $2, $3)`,
		guild.ID, guild.OwnerID, generalRole.ID,
	)
	for _, ch := range channels {
		batch.Queue(
			`INSERT INTO channels (id, guild_id, name, type, position, topic)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			ch.ID, ch.GuildID, ch.Name, ch.Type, ch.Position, ch.Topic,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *guildRepo) GetByID(ctx context.Context, id int64) (*models.Guild, error) {
	g := &models.Guild{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, owner_id, created_at
		 FROM guilds WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return g, err
}

func (r *guildRepo) Delete(ctx context.Context, id int64) error {
	// Roles, members, assignments, and channels go with the guild via
	// ON DELETE CASCADE.
	_, err := r.pool.Exec(ctx, `DELETE FROM guilds WHERE id = $1`, id)
	return err
}
