package service

import (
	"context"

	"github.com/ntarasov/bastion/internal/audit"
	"github.com/ntarasov/bastion/internal/database"
	"github.com/ntarasov/bastion/internal/models"
	"github.com/ntarasov/bastion/internal/permissions"
	"github.com/ntarasov/bastion/internal/snowflake"
)

// ChannelService handles channel lifecycle and ordering. Positions are
// contiguous within a (guild, type) scope and only ever change through the
// transactional move and compaction paths in the repository.
type ChannelService struct {
	channels  database.ChannelRepository
	snowflake *snowflake.Generator
	perms     *PermissionResolver
	audit     audit.Sink
}

// NewChannelService creates a ChannelService.
func NewChannelService(
	channels database.ChannelRepository,
	sf *snowflake.Generator,
	perms *PermissionResolver,
	sink audit.Sink,
) *ChannelService {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &ChannelService{channels: channels, snowflake: sf, perms: perms, audit: sink}
}

// CreateChannel appends a channel to the end of its type scope.
func (s *ChannelService) CreateChannel(ctx context.Context, guildID, actorID int64, name string, channelType models.ChannelType, topic *string) (*models.Channel, error) {
	if name == "" || len(name) > 100 {
		return nil, BadRequest("INVALID_NAME", "name must be 1-100 characters")
	}
	if !channelType.Valid() {
		return nil, BadRequest("INVALID_TYPE", "unsupported channel type")
	}

	if err := s.perms.Require(ctx, guildID, actorID, permissions.PermManageChannels, ""); err != nil {
		return nil, err
	}

	channel := &models.Channel{
		ID:      s.snowflake.Generate().Int64(),
		GuildID: guildID,
		Name:    name,
		Type:    channelType,
		Topic:   topic,
	}
	if err := s.channels.CreateInScope(ctx, channel); err != nil {
		return nil, Internal("INTERNAL", "internal error")
	}

	s.audit.Record(ctx, audit.NewEvent(guildID, actorID, audit.ActionChannelCreate, channel.ID, map[string]any{
		"name":     channel.Name,
		"type":     int(channel.Type),
		"position": channel.Position,
	}))
	return channel, nil
}

// ListChannels returns all channels of a guild, grouped by type and ordered
// by position within each type.
func (s *ChannelService) ListChannels(ctx context.Context, guildID int64) ([]models.Channel, error) {
	channels, err := s.channels.GetByGuildID(ctx, guildID)
	if err != nil {
		return nil, Internal("INTERNAL", "internal error")
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	return channels, nil
}

// GetChannel returns one channel of the guild.
func (s *ChannelService) GetChannel(ctx context.Context, guildID, channelID int64) (*models.Channel, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, Internal("INTERNAL", "internal error")
	}
	if channel == nil || channel.GuildID != guildID {
		return nil, NotFound("NOT_FOUND", "channel not found")
	}
	return channel, nil
}

// UpdateChannel changes a channel's name, topic, or position. A requested
// position runs the sibling shift within the channel's type scope; type
// changes are not supported.
func (s *ChannelService) UpdateChannel(ctx context.Context, guildID, actorID, channelID int64, name *string, topic *string, position *int, channelType *models.ChannelType) (*models.Channel, error) {
	channel, err := s.GetChannel(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}
	if channelType != nil && *channelType != channel.Type {
		return nil, BadRequest("TYPE_IMMUTABLE", "a channel cannot change its type")
	}

	if err := s.perms.Require(ctx, guildID, actorID, permissions.PermManageChannels, ""); err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if name != nil {
		if *name == "" || len(*name) > 100 {
			return nil, BadRequest("INVALID_NAME", "name must be 1-100 characters")
		}
		channel.Name = *name
		changes["name"] = *name
	}
	if topic != nil {
		channel.Topic = topic
		changes["topic"] = *topic
	}
	if name != nil || topic != nil {
		if err := s.channels.Update(ctx, channel); err != nil {
			return nil, Internal("INTERNAL", "internal error")
		}
	}

	if position != nil && *position != channel.Position {
		if err := s.channels.Move(ctx, channelID, *position); err != nil {
			return nil, Internal("INTERNAL", "internal error")
		}
		changes["position"] = *position
		// Re-read: the move may have clamped the requested position.
		channel, err = s.GetChannel(ctx, guildID, channelID)
		if err != nil {
			return nil, err
		}
	}

	s.audit.Record(ctx, audit.NewEvent(guildID, actorID, audit.ActionChannelUpdate, channelID, changes))
	return channel, nil
}

// DeleteChannel removes a channel and compacts its type scope.
func (s *ChannelService) DeleteChannel(ctx context.Context, guildID, actorID, channelID int64) error {
	channel, err := s.GetChannel(ctx, guildID, channelID)
	if err != nil {
		return err
	}

	if err := s.perms.Require(ctx, guildID, actorID, permissions.PermManageChannels, ""); err != nil {
		return err
	}

	if err := s.channels.DeleteAndCompact(ctx, channelID); err != nil {
		return Internal("INTERNAL", "internal error")
	}

	s.audit.Record(ctx, audit.NewEvent(guildID, actorID, audit.ActionChannelDelete, channelID, map[string]any{
		"name": channel.Name,
		"type": int(channel.Type),
	}))
	return nil
}
