package service

import (
	"context"
	"time"

	"github.com/ntarasov/bastion/internal/audit"
	"github.com/ntarasov/bastion/internal/database"
	"github.com/ntarasov/bastion/internal/models"
	"github.com/ntarasov/bastion/internal/permissions"
	"github.com/ntarasov/bastion/internal/snowflake"
)

// GuildService handles guild lifecycle and membership.
type GuildService struct {
	guilds    database.GuildRepository
	roles     database.RoleRepository
	members   database.MemberRepository
	snowflake *snowflake.Generator
	perms     *PermissionResolver
	audit     audit.Sink
}

// NewGuildService creates a GuildService.
func NewGuildService(
	guilds database.GuildRepository,
	roles database.RoleRepository,
	members database.MemberRepository,
	sf *snowflake.Generator,
	perms *PermissionResolver,
	sink audit.Sink,
) *GuildService {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &GuildService{
		guilds:    guilds,
		roles:     roles,
		members:   members,
		snowflake: sf,
		perms:     perms,
		audit:     sink,
	}
}

// CreateGuild bootstraps a guild in one transaction: the guild row, the two
// system roles, the owner's membership with both assignments, and a default
// text channel.
func (s *GuildService) CreateGuild(ctx context.Context, ownerID int64, name string) (*models.Guild, error) {
	if name == "" || len(name) > 100 {
		return nil, BadRequest("INVALID_NAME", "name must be 1-100 characters")
	}

	guild := &models.Guild{
		ID:        s.snowflake.Generate().Int64(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
	ownerRole := &models.Role{
		ID:          s.snowflake.Generate().Int64(),
		GuildID:     guild.ID,
		Name:        models.RoleNameOwner,
		Permissions: int64(permissions.PermAdministrator),
		Position:    models.RolePositionOwner,
		IsSystem:    true,
	}
	generalRole := &models.Role{
		ID:          s.snowflake.Generate().Int64(),
		GuildID:     guild.ID,
		Name:        models.RoleNameGeneral,
		Permissions: int64(permissions.DefaultGeneralPerms),
		Position:    models.RolePositionGeneral,
		IsSystem:    true,
	}
	defaultChannels := []models.Channel{
		{
			ID:      s.snowflake.Generate().Int64(),
			GuildID: guild.ID,
			Name:    "general",
			Type:    models.ChannelTypeText,
		},
	}

	if err := s.guilds.CreateWithDefaults(ctx, guild, ownerRole, generalRole, defaultChannels); err != nil {
		return nil, Internal("INTERNAL", "internal error")
	}

	s.audit.Record(ctx, audit.NewEvent(guild.ID, ownerID, audit.ActionGuildCreate, guild.ID, map[string]any{
		"name": name,
	}))
	return guild, nil
}

// GetGuild returns a guild by id.
func (s *GuildService) GetGuild(ctx context.Context, guildID int64) (*models.Guild, error) {
	guild, err := s.guilds.GetByID(ctx, guildID)
	if err != nil {
		return nil, Internal("INTERNAL", "internal error")
	}
	if guild == nil {
		return nil, NotFound("NOT_FOUND", "guild not found")
	}
	return guild, nil
}

// DeleteGuild destroys a guild and everything it owns. Owner only.
func (s *GuildService) DeleteGuild(ctx context.Context, guildID, actorID int64) error {
	guild, err := s.GetGuild(ctx, guildID)
	if err != nil {
		return err
	}
	if guild.OwnerID != actorID {
		return Forbidden("NOT_OWNER", "only the guild owner can delete the guild")
	}

	if err := s.guilds.Delete(ctx, guildID); err != nil {
		return Internal("INTERNAL", "internal error")
	}

	s.perms.Invalidate(ctx, guildID)
	s.audit.Record(ctx, audit.NewEvent(guildID, actorID, audit.ActionGuildDelete, guildID, nil))
	return nil
}

// AddMember joins a user to a guild. The membership and the General role
// assignment land in one transaction, so a member without General is never
// observable.
func (s *GuildService) AddMember(ctx context.Context, guildID, userID int64) (*models.Member, error) {
	if _, err := s.GetGuild(ctx, guildID); err != nil {
		return nil, err
	}

	existing, err := s.members.GetByGuildAndUser(ctx, guildID, userID)
	if err != nil {
		return nil, Internal("INTERNAL", "internal error")
	}
	if existing != nil {
		return nil, Conflict("ALREADY_MEMBER", "user is already a member of this guild")
	}

	general, err := s.roles.GetByGuildAndName(ctx, guildID, models.RoleNameGeneral)
	if err != nil || general == nil {
		return nil, Internal("INTERNAL", "internal error")
	}

	member := &models.Member{GuildID: guildID, UserID: userID}
	if err := s.members.CreateWithRole(ctx, member, general.ID); err != nil {
		return nil, Internal("INTERNAL", "internal error")
	}
	member.Roles = []int64{general.ID}

	s.audit.Record(ctx, audit.NewEvent(guildID, userID, audit.ActionMemberJoin, userID, nil))
	return member, nil
}

// RemoveMember removes a user from a guild. A member may remove themselves;
// removing someone else requires KickMembers. The owner cannot leave their
// own guild.
func (s *GuildService) RemoveMember(ctx context.Context, guildID, actorID, userID int64) error {
	guild, err := s.GetGuild(ctx, guildID)
	if err != nil {
		return err
	}
	if guild.OwnerID == userID {
		return Conflict("OWNER_CANNOT_LEAVE", "the guild owner cannot be removed from the guild")
	}

	member, err := s.members.GetByGuildAndUser(ctx, guildID, userID)
	if err != nil {
		return Internal("INTERNAL", "internal error")
	}
	if member == nil {
		return NotFound("NOT_FOUND", "member not found")
	}

	if actorID != userID {
		if err := s.perms.Require(ctx, guildID, actorID, permissions.PermKickMembers, ""); err != nil {
			return err
		}
	}

	if err := s.members.Delete(ctx, guildID, userID); err != nil {
		return Internal("INTERNAL", "internal error")
	}

	s.perms.InvalidateMember(ctx, guildID, userID)
	s.audit.Record(ctx, audit.NewEvent(guildID, actorID, audit.ActionMemberLeave, userID, nil))
	return nil
}

// IsMember reports whether the user belongs to the guild.
func (s *GuildService) IsMember(ctx context.Context, guildID, userID int64) (bool, error) {
	member, err := s.members.GetByGuildAndUser(ctx, guildID, userID)
	if err != nil {
		return false, Internal("INTERNAL", "internal error")
	}
	return member != nil, nil
}

// ListMembers returns one page of the guild's member list.
func (s *GuildService) ListMembers(ctx context.Context, guildID int64, limit, offset int) ([]models.Member, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	members, err := s.members.GetByGuildID(ctx, guildID, limit, offset)
	if err != nil {
		return nil, Internal("INTERNAL", "internal error")
	}
	if members == nil {
		members = []models.Member{}
	}
	return members, nil
}
