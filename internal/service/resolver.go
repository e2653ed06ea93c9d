package service

import (
	"context"
	"log/slog"

	"github.com/ntarasov/bastion/internal/database"
	"github.com/ntarasov/bastion/internal/permissions"
)

// PermissionCache is the read-through cache the resolver consults before
// touching the store. Entries are short-lived; stale reads are accepted.
type PermissionCache interface {
	Get(ctx context.Context, guildID, userID int64) (permissions.Permission, bool, error)
	Set(ctx context.Context, guildID, userID int64, perms permissions.Permission) error
	InvalidateGuild(ctx context.Context, guildID int64) error
	InvalidateUser(ctx context.Context, guildID, userID int64) error
}

// PermissionResolver computes the effective permission set for a user in a
// guild: owner bypass, then bitwise union of held roles with the
// Administrator collapse applied.
type PermissionResolver struct {
	guilds database.GuildRepository
	roles  database.RoleRepository
	cache  PermissionCache
	log    *slog.Logger
}

// NewPermissionResolver creates a PermissionResolver. cache may be nil, in
// which case every resolve hits the store.
func NewPermissionResolver(
	guilds database.GuildRepository,
	roles database.RoleRepository,
	cache PermissionCache,
	log *slog.Logger,
) *PermissionResolver {
	if log == nil {
		log = slog.Default()
	}
	return &PermissionResolver{guilds: guilds, roles: roles, cache: cache, log: log}
}

// Resolve returns the effective permission set for the user in the guild.
// The guild owner resolves to Administrator without any role lookup. A
// member with no roles resolves to the empty set.
func (r *PermissionResolver) Resolve(ctx context.Context, guildID, userID int64) (permissions.Permission, error) {
	guild, err := r.guilds.GetByID(ctx, guildID)
	if err != nil {
		return 0, Internal("INTERNAL", "internal error")
	}
	if guild == nil {
		return 0, NotFound("NOT_FOUND", "guild not found")
	}
	if guild.OwnerID == userID {
		return permissions.PermAdministrator, nil
	}

	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, guildID, userID)
		if err != nil {
			// Cache trouble never fails a resolve.
			r.log.WarnContext(ctx, "permission cache read failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	roles, err := r.roles.GetByMember(ctx, guildID, userID)
	if err != nil {
		return 0, Internal("INTERNAL", "internal error")
	}

	bits := make([]int64, len(roles))
	for i, role := range roles {
		bits[i] = role.Permissions
	}
	resolved := permissions.Combine(bits...)

	if r.cache != nil {
		if err := r.cache.Set(ctx, guildID, userID, resolved); err != nil {
			r.log.WarnContext(ctx, "permission cache write failed", "error", err)
		}
	}
	return resolved, nil
}

// Has reports whether the user holds perm in the guild. Administrator
// satisfies every check.
func (r *PermissionResolver) Has(ctx context.Context, guildID, userID int64, perm permissions.Permission) (bool, error) {
	resolved, err := r.Resolve(ctx, guildID, userID)
	if err != nil {
		return false, err
	}
	return resolved.Allows(perm), nil
}

// Require returns Forbidden when the user lacks perm in the guild.
func (r *PermissionResolver) Require(ctx context.Context, guildID, userID int64, perm permissions.Permission, message string) error {
	ok, err := r.Has(ctx, guildID, userID, perm)
	if err != nil {
		return err
	}
	if !ok {
		if message == "" {
			message = "you do not have permission to perform this action"
		}
		return Forbidden("MISSING_PERMISSIONS", message)
	}
	return nil
}

// Invalidate drops cached permission sets for a guild after a role
// mutation. Best-effort: failures are logged, the mutation stands.
func (r *PermissionResolver) Invalidate(ctx context.Context, guildID int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.InvalidateGuild(ctx, guildID); err != nil {
		r.log.WarnContext(ctx, "permission cache invalidation failed", "guild_id", guildID, "error", err)
	}
}

// InvalidateMember drops one member's cached permission set after an
// assignment change.
func (r *PermissionResolver) InvalidateMember(ctx context.Context, guildID, userID int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.InvalidateUser(ctx, guildID, userID); err != nil {
		r.log.WarnContext(ctx, "permission cache invalidation failed", "guild_id", guildID, "user_id", userID, "error", err)
	}
}
