package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ntarasov/bastion/internal/models"
	"github.com/ntarasov/bastion/internal/ordering"
)

type channelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepository(pool *pgxpool.Pool) ChannelRepository {
	return &channelRepo{pool: pool}
}

func (r *channelRepo) CreateInScope(ctx context.Context, channel *models.Channel) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	siblings, err := lockScope(ctx, tx, channel.GuildID, channel.Type)
	if err != nil {
		return err
	}
	channel.Position = ordering.NextPosition(siblings)

	_, err = tx.Exec(ctx,
		`INSERT INTO channels (id, guild_id, name, type, position, topic)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		channel.ID, channel.GuildID, channel.Name, channel.Type, channel.Position, channel.Topic,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *channelRepo) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	ch := &models.Channel{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, guild_id, name, type, position, topic
		 FROM channels WHERE id = $1`, id,
	).Scan(&ch.ID, &ch.GuildID, &ch.Name, &ch.Type, &ch.Position, &ch.Topic)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return ch, err
}

func (r *channelRepo) GetByGuildID(ctx context.Context, guildID int64) ([]models.Channel, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, guild_id, name, type, position, topic
		 FROM channels WHERE guild_id = $1
		 ORDER BY type, position`, guildID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChannels(rows)
}

func (r *channelRepo) GetScope(ctx context.Context, guildID int64, channelType models.ChannelType) ([]models.Channel, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, guild_id, name, type, position, topic
		 FROM channels WHERE guild_id = $1 AND type = $2
		 ORDER BY position`, guildID, channelType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChannels(rows)
}

func (r *channelRepo) Update(ctx context.Context, channel *models.Channel) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE channels SET name = $2, topic = $3 WHERE id = $1`,
		channel.ID, channel.Name, channel.Topic,
	)
	return err
}

func (r *channelRepo) Move(ctx context.Context, channelID int64, newPos int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	guildID, channelType, err := lockChannel(ctx, tx, channelID)
	if err != nil {
		return err
	}
	siblings, err := lockScope(ctx, tx, guildID, channelType)
	if err != nil {
		return err
	}

	changes, err := ordering.PlanMove(siblings, channelID, newPos)
	if err != nil {
		return err
	}
	if err := applyPositions(ctx, tx, changes); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *channelRepo) DeleteAndCompact(ctx context.Context, channelID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	guildID, channelType, err := lockChannel(ctx, tx, channelID)
	if err != nil {
		return err
	}
	siblings, err := lockScope(ctx, tx, guildID, channelType)
	if err != nil {
		return err
	}

	changes, err := ordering.PlanRemoval(siblings, channelID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM channels WHERE id = $1`, channelID); err != nil {
		return err
	}
	if err := applyPositions(ctx, tx, changes); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// lockChannel resolves a channel's scope, locking the row so the channel
// cannot move or vanish between scope resolution and the sibling read.
func lockChannel(ctx context.Context, tx pgx.Tx, channelID int64) (int64, models.ChannelType, error) {
	var guildID int64
	var channelType models.ChannelType
	err := tx.QueryRow(ctx,
		`SELECT guild_id, type FROM channels WHERE id = $1 FOR UPDATE`, channelID,
	).Scan(&guildID, &channelType)
	return guildID, channelType, err
}

// lockScope reads a type-scoped sibling set under FOR UPDATE so position
// planning and the write that follows see a stable snapshot.
func lockScope(ctx context.Context, tx pgx.Tx, guildID int64, channelType models.ChannelType) ([]models.Channel, error) {
	rows, err := tx.Query(ctx,
		`SELECT id, guild_id, name, type, position, topic
		 FROM channels WHERE guild_id = $1 AND type = $2
		 ORDER BY position
		 FOR UPDATE`, guildID, channelType,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChannels(rows)
}

func applyPositions(ctx context.Context, tx pgx.Tx, changes []ordering.PositionChange) error {
	if len(changes) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range changes {
		batch.Queue(`UPDATE channels SET position = $2 WHERE id = $1`, c.ChannelID, c.Position)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func scanChannels(rows pgx.Rows) ([]models.Channel, error) {
	var channels []models.Channel
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.GuildID, &ch.Name, &ch.Type, &ch.Position, &ch.Topic); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}
