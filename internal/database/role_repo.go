package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ntarasov/bastion/internal/models"
)

type roleRepo struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) RoleRepository {
	return &roleRepo{pool: pool}
}

const uniqueViolation = "23505"

func mapRoleError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateName
	}
	return err
}

func (r *roleRepo) CreateCustom(ctx context.Context, role *models.Role) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Serialize position assignment per guild on the guild row.
	var guildID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM guilds WHERE id = $1 FOR UPDATE`, role.GuildID,
	).Scan(&guildID)
	if err != nil {
		return err
	}

	var maxPos int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM roles
		 WHERE guild_id = $1 AND position < $2`,
		role.GuildID, models.RolePositionGeneral,
	).Scan(&maxPos)
	if err != nil {
		return err
	}

	next := maxPos + 1
	if next < models.MinCustomRolePosition {
		next = models.MinCustomRolePosition
	}
	if next > models.MaxCustomRolePosition {
		return ErrNoFreePosition
	}
	role.Position = next

	_, err = tx.Exec(ctx,
		`INSERT INTO roles (id, guild_id, name, color, permissions, position, is_system)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		role.ID, role.GuildID, role.Name, role.Color, role.Permissions, role.Position, role.IsSystem,
	)
	if err != nil {
		return mapRoleError(err)
	}

	return tx.Commit(ctx)
}

func (r *roleRepo) GetByID(ctx context.Context, id int64) (*models.Role, error) {
	role := &models.Role{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, guild_id, name, color, permissions, position, is_system
		 FROM roles WHERE id = $1`, id,
	).Scan(&role.ID, &role.GuildID, &role.Name, &role.Color, &role.Permissions, &role.Position, &role.IsSystem)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return role, err
}

func (r *roleRepo) GetByGuildID(ctx context.Context, guildID int64) ([]models.Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, guild_id, name, color, permissions, position, is_system
		 FROM roles WHERE guild_id = $1
		 ORDER BY position`, guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRoles(rows)
}

func (r *roleRepo) GetByGuildAndName(ctx context.Context, guildID int64, name string) (*models.Role, error) {
	role := &models.Role{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, guild_id, name, color, permissions, position, is_system
		 FROM roles WHERE guild_id = $1 AND name = $2`, guildID, name,
	).Scan(&role.ID, &role.GuildID, &role.Name, &role.Color, &role.Permissions, &role.Position, &role.IsSystem)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return role, err
}

func (r *roleRepo) GetByMember(ctx context.Context, guildID, userID int64) ([]models.Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.guild_id, r.name, r.color, r.permissions, r.position, r.is_system
		 FROM roles r
		 INNER JOIN member_roles mr ON mr.role_id = r.id
		 WHERE mr.guild_id = $1 AND mr.user_id = $2
		 ORDER BY r.position`, guildID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRoles(rows)
}

func (r *roleRepo) Update(ctx context.Context, role *models.Role) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE roles SET name = $2, color = $3, permissions = $4
		 WHERE id = $1`,
		role.ID, role.Name, role.Color, role.Permissions,
	)
	return mapRoleError(err)
}

func (r *roleRepo) DeleteCascade(ctx context.Context, id int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Explicit two-step delete instead of relying on a store-level cascade,
	// so the same sequence ports across storage engines.
	if _, err := tx.Exec(ctx, `DELETE FROM member_roles WHERE role_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *roleRepo) UpdatePositions(ctx context.Context, guildID int64, changes []RolePosition) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Lock the guild's roles so concurrent reorders serialize.
	rows, err := tx.Query(ctx,
		`SELECT id FROM roles WHERE guild_id = $1 FOR UPDATE`, guildID,
	)
	if err != nil {
		return err
	}
	if _, err := pgx.CollectRows(rows, pgx.RowTo[int64]); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, c := range changes {
		batch.Queue(
			`UPDATE roles SET position = $2 WHERE id = $1 AND guild_id = $3`,
			c.RoleID, c.Position, guildID,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanRoles(rows pgx.Rows) ([]models.Role, error) {
	var roles []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.GuildID, &role.Name, &role.Color, &role.Permissions, &role.Position, &role.IsSystem); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
