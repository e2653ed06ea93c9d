package database

import (
	"context"
	"errors"

	"github.com/ntarasov/bastion/internal/models"
)

// Sentinel errors surfaced by repositories for constraint violations the
// service layer turns into caller-facing conflicts.
var (
	ErrDuplicateName  = errors.New("database: name already taken in guild")
	ErrNoFreePosition = errors.New("database: no free custom role position")
)

// RolePosition is one row of a batch role-position update.
type RolePosition struct {
	RoleID   int64
	Position int
}

type GuildRepository interface {
	// CreateWithDefaults creates the guild together with its two system
	// roles, the owner's membership and role assignments, and any default
	// channels, as one transaction.
	CreateWithDefaults(ctx context.Context, guild *models.Guild, ownerRole, generalRole *models.Role, channels []models.Channel) error
	GetByID(ctx context.Context, id int64) (*models.Guild, error)
	Delete(ctx context.Context, id int64) error
}

type RoleRepository interface {
	// CreateCustom inserts a custom role at the next free position between
	// the Owner and General sentinels, serializing against concurrent
	// creates in the same guild.
	CreateCustom(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, id int64) (*models.Role, error)
	GetByGuildID(ctx context.Context, guildID int64) ([]models.Role, error)
	GetByGuildAndName(ctx context.Context, guildID int64, name string) (*models.Role, error)
	GetByMember(ctx context.Context, guildID, userID int64) ([]models.Role, error)
	Update(ctx context.Context, role *models.Role) error
	// DeleteCascade removes the role's member assignments and then the role
	// itself in one transaction.
	DeleteCascade(ctx context.Context, id int64) error
	// UpdatePositions applies a reorder batch in one transaction.
	UpdatePositions(ctx context.Context, guildID int64, changes []RolePosition) error
}

type MemberRepository interface {
	// CreateWithRole inserts the membership and the given role assignment
	// (the General role on join) in one transaction.
	CreateWithRole(ctx context.Context, member *models.Member, roleID int64) error
	GetByGuildAndUser(ctx context.Context, guildID, userID int64) (*models.Member, error)
	GetByGuildID(ctx context.Context, guildID int64, limit, offset int) ([]models.Member, error)
	Delete(ctx context.Context, guildID, userID int64) error
	AddRole(ctx context.Context, guildID, userID, roleID int64) error
	RemoveRole(ctx context.Context, guildID, userID, roleID int64) error
}

type ChannelRepository interface {
	// CreateInScope appends the channel to the end of its (guild, type)
	// scope, assigning the position inside the transaction.
	CreateInScope(ctx context.Context, channel *models.Channel) error
	GetByID(ctx context.Context, id int64) (*models.Channel, error)
	GetByGuildID(ctx context.Context, guildID int64) ([]models.Channel, error)
	GetScope(ctx context.Context, guildID int64, channelType models.ChannelType) ([]models.Channel, error)
	// Update persists name and topic; positions move only through Move.
	Update(ctx context.Context, channel *models.Channel) error
	// Move shifts the channel to newPos within its scope, displacing
	// siblings, as one transaction.
	Move(ctx context.Context, channelID int64, newPos int) error
	// DeleteAndCompact removes the channel and closes the position gap it
	// leaves, as one transaction.
	DeleteAndCompact(ctx context.Context, channelID int64) error
}
