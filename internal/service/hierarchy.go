package service

import (
	"context"

	"github.com/ntarasov/bastion/internal/database"
	"github.com/ntarasov/bastion/internal/models"
	"github.com/ntarasov/bastion/internal/permissions"
)

// RoleHierarchyGuard decides who may touch which role. Rank runs opposite
// to position: position 0 (Owner) outranks everything, larger positions
// rank lower.
type RoleHierarchyGuard struct {
	guilds database.GuildRepository
	roles  database.RoleRepository
	perms  *PermissionResolver
}

// NewRoleHierarchyGuard creates a RoleHierarchyGuard.
func NewRoleHierarchyGuard(
	guilds database.GuildRepository,
	roles database.RoleRepository,
	perms *PermissionResolver,
) *RoleHierarchyGuard {
	return &RoleHierarchyGuard{guilds: guilds, roles: roles, perms: perms}
}

// HighestRank returns the minimum position among the user's roles in the
// guild. A user with no role assignments ranks at the General sentinel: a
// roleless member never outranks any custom role.
func (g *RoleHierarchyGuard) HighestRank(ctx context.Context, guildID, userID int64) (int, error) {
	roles, err := g.roles.GetByMember(ctx, guildID, userID)
	if err != nil {
		return 0, Internal("INTERNAL", "internal error")
	}
	highest := models.RolePositionGeneral
	for _, r := range roles {
		if r.Position < highest {
			highest = r.Position
		}
	}
	return highest, nil
}

// CanManage reports whether the actor may modify, delete, or (un)assign the
// target role. The owner may manage anything; everyone else needs
// ManageRoles, is never allowed to touch system roles, and can only manage
// roles strictly below their own highest rank.
func (g *RoleHierarchyGuard) CanManage(ctx context.Context, guildID, actorID int64, target *models.Role) (bool, error) {
	guild, err := g.guilds.GetByID(ctx, guildID)
	if err != nil {
		return false, Internal("INTERNAL", "internal error")
	}
	if guild == nil {
		return false, NotFound("NOT_FOUND", "guild not found")
	}
	if guild.OwnerID == actorID {
		return true, nil
	}

	ok, err := g.perms.Has(ctx, guildID, actorID, permissions.PermManageRoles)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if target.IsSystem {
		return false, nil
	}

	highest, err := g.HighestRank(ctx, guildID, actorID)
	if err != nil {
		return false, err
	}
	return target.Position > highest, nil
}

// IsOwner reports whether the user owns the guild.
func (g *RoleHierarchyGuard) IsOwner(ctx context.Context, guildID, userID int64) (bool, error) {
	guild, err := g.guilds.GetByID(ctx, guildID)
	if err != nil {
		return false, Internal("INTERNAL", "internal error")
	}
	if guild == nil {
		return false, NotFound("NOT_FOUND", "guild not found")
	}
	return guild.OwnerID == userID, nil
}
