package service

import (
	"context"
	"errors"

	"github.com/ntarasov/bastion/internal/audit"
	"github.com/ntarasov/bastion/internal/database"
	"github.com/ntarasov/bastion/internal/models"
	"github.com/ntarasov/bastion/internal/permissions"
	"github.com/ntarasov/bastion/internal/snowflake"
)

// RoleService handles role lifecycle and member-role assignments.
type RoleService struct {
	roles     database.RoleRepository
	members   database.MemberRepository
	snowflake *snowflake.Generator
	perms     *PermissionResolver
	guard     *RoleHierarchyGuard
	audit     audit.Sink
}

// NewRoleService creates a RoleService.
func NewRoleService(
	roles database.RoleRepository,
	members database.MemberRepository,
	sf *snowflake.Generator,
	perms *PermissionResolver,
	guard *RoleHierarchyGuard,
	sink audit.Sink,
) *RoleService {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &RoleService{
		roles:     roles,
		members:   members,
		snowflake: sf,
		perms:     perms,
		guard:     guard,
		audit:     sink,
	}
}

// ListRoles returns all roles for a guild ordered by position.
func (s *RoleService) ListRoles(ctx context.Context, guildID int64) ([]models.Role, error) {
	roles, err := s.roles.GetByGuildID(ctx, guildID)
	if err != nil {
		return nil, Internal("INTERNAL", "internal error")
	}
	if roles == nil {
		roles = []models.Role{}
	}
	return roles, nil
}

// GetRole returns one role of the guild.
func (s *RoleService) GetRole(ctx context.Context, guildID, roleID int64) (*models.Role, error) {
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, Internal("INTERNAL", "internal error")
	}
	if role == nil || role.GuildID != guildID {
		return nil, NotFound("NOT_FOUND", "role not found")
	}
	return role, nil
}

// CreateRole creates a custom role at the next free position between the
// system roles. Requires ManageRoles; the guild owner always qualifies.
func (s *RoleService) CreateRole(ctx context.Context, guildID, actorID int64, name string, color int, permBits int64) (*models.Role, error) {
	if name == "" || len(name) > 100 {
		return nil, BadRequest("INVALID_NAME", "name must be 1-100 characters")
	}
	if name == models.RoleNameOwner || name == models.RoleNameGeneral {
		return nil, Conflict("RESERVED_NAME", "role name is reserved for a system role")
	}

	if err := s.perms.Require(ctx, guildID, actorID, permissions.PermManageRoles, ""); err != nil {
		return nil, err
	}

	role := &models.Role{
		ID:          s.snowflake.Generate().Int64(),
		GuildID:     guildID,
		Name:        name,
		Color:       color,
		Permissions: permBits,
	}
	if err := s.roles.CreateCustom(ctx, role); err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicateName):
			return nil, Conflict("DUPLICATE_NAME", "a role with this name already exists")
		case errors.Is(err, database.ErrNoFreePosition):
			return nil, Conflict("NO_FREE_POSITION", "the guild has no free role positions left")
		}
		return nil, Internal("INTERNAL", "internal error")
	}

	s.audit.Record(ctx, audit.NewEvent(guildID, actorID, audit.ActionRoleCreate, role.ID, map[string]any{
		"name":     role.Name,
		"position": role.Position,
	}))
	return role, nil
}

// UpdateRole changes a role's name, color, or permission bits. System roles
// are immutable, even for the owner.
func (s *RoleService) UpdateRole(ctx context.Context, guildID, actorID, roleID int64, name *string, color *int, permBits *int64) (*models.Role, error) {
	role, err := s.GetRole(ctx, guildID, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, Conflict("SYSTEM_ROLE", "system roles cannot be modified")
	}

	ok, err := s.guard.CanManage(ctx, guildID, actorID, role)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, RoleHierarchyError("cannot modify a role at or above your highest rank")
	}

	changes := map[string]any{}
	if name != nil {
		if *name == "" || len(*name) > 100 {
			return nil, BadRequest("INVALID_NAME", "name must be 1-100 characters")
		}
		if *name == models.RoleNameOwner || *name == models.RoleNameGeneral {
			return nil, Conflict("RESERVED_NAME", "role name is reserved for a system role")
		}
		role.Name = *name
		changes["name"] = *name
	}
	if color != nil {
		role.Color = *color
		changes["color"] = *color
	}
	if permBits != nil {
		role.Permissions = *permBits
		changes["permissions"] = *permBits
	}

	if err := s.roles.Update(ctx, role); err != nil {
		if errors.Is(err, database.ErrDuplicateName) {
			return nil, Conflict("DUPLICATE_NAME", "a role with this name already exists")
		}
		return nil, Internal("INTERNAL", "internal error")
	}

	if permBits != nil {
		s.perms.Invalidate(ctx, guildID)
	}
	s.audit.Record(ctx, audit.NewEvent(guildID, actorID, audit.ActionRoleUpdate, roleID, changes))
	return role, nil
}

// DeleteRole removes a custom role and all of its member assignments in one
// transaction.
func (s *RoleService) DeleteRole(ctx context.Context, guildID, actorID, roleID int64) error {
	role, err := s.GetRole(ctx, guildID, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return Conflict("SYSTEM_ROLE", "system roles cannot be deleted")
	}

	ok, err := s.guard.CanManage(ctx, guildID, actorID, role)
	if err != nil {
		return err
	}
	if !ok {
		return RoleHierarchyError("cannot delete a role at or above your highest rank")
	}

	if err := s.roles.DeleteCascade(ctx, roleID); err != nil {
		return Internal("INTERNAL", "internal error")
	}

	s.perms.Invalidate(ctx, guildID)
	s.audit.Record(ctx, audit.NewEvent(guildID, actorID, audit.ActionRoleDelete, roleID, map[string]any{
		"name": role.Name,
	}))
	return nil
}

// ReorderRoles re-ranks the listed custom roles: the first id becomes
// position 1, the second position 2, and so on. Roles not listed keep their
// positions. Requires ManageRoles; a non-owner actor must outrank every
// listed role.
func (s *RoleService) ReorderRoles(ctx context.Context, guildID, actorID int64, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return BadRequest("EMPTY_REORDER", "reorder list must name at least one role")
	}

	if err := s.perms.Require(ctx, guildID, actorID, permissions.PermManageRoles, ""); err != nil {
		return err
	}

	all, err := s.roles.GetByGuildID(ctx, guildID)
	if err != nil {
		return Internal("INTERNAL", "internal error")
	}
	byID := make(map[int64]*models.Role, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}

	seen := make(map[int64]bool, len(roleIDs))
	for _, id := range roleIDs {
		role, ok := byID[id]
		if !ok {
			return BadRequest("UNKNOWN_ROLE", "reorder list names a role that does not exist in this guild")
		}
		if role.IsSystem {
			return BadRequest("SYSTEM_ROLE", "system roles cannot be reordered")
		}
		if seen[id] {
			return BadRequest("DUPLICATE_ROLE", "reorder list names a role twice")
		}
		seen[id] = true
	}

	isOwner, err := s.guard.IsOwner(ctx, guildID, actorID)
	if err != nil {
		return err
	}
	if !isOwner {
		highest, err := s.guard.HighestRank(ctx, guildID, actorID)
		if err != nil {
			return err
		}
		for _, id := range roleIDs {
			if byID[id].Position <= highest {
				return RoleHierarchyError("cannot reorder a role at or above your highest rank")
			}
		}
	}

	changes := make([]database.RolePosition, len(roleIDs))
	for i, id := range roleIDs {
		changes[i] = database.RolePosition{RoleID: id, Position: models.MinCustomRolePosition + i}
	}
	if err := s.roles.UpdatePositions(ctx, guildID, changes); err != nil {
		return Internal("INTERNAL", "internal error")
	}

	s.audit.Record(ctx, audit.NewEvent(guildID, actorID, audit.ActionRoleReorder, 0, map[string]any{
		"role_ids": roleIDs,
	}))
	return nil
}

// AssignRole grants a role to a member. Assigning an already-held role is a
// silent no-op. System roles are never assignable here; the Owner role only
// ever attaches during guild bootstrap.
func (s *RoleService) AssignRole(ctx context.Context, guildID, actorID, targetUserID, roleID int64) error {
	role, err := s.GetRole(ctx, guildID, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return Conflict("SYSTEM_ROLE", "system roles cannot be assigned")
	}

	member, err := s.members.GetByGuildAndUser(ctx, guildID, targetUserID)
	if err != nil {
		return Internal("INTERNAL", "internal error")
	}
	if member == nil {
		return Conflict("NOT_A_MEMBER", "target user is not a member of this guild")
	}

	ok, err := s.guard.CanManage(ctx, guildID, actorID, role)
	if err != nil {
		return err
	}
	if !ok {
		return RoleHierarchyError("cannot assign a role at or above your highest rank")
	}

	if err := s.members.AddRole(ctx, guildID, targetUserID, roleID); err != nil {
		return Internal("INTERNAL", "internal error")
	}

	s.perms.InvalidateMember(ctx, guildID, targetUserID)
	s.audit.Record(ctx, audit.NewEvent(guildID, actorID, audit.ActionRoleAssign, roleID, map[string]any{
		"user_id": targetUserID,
	}))
	return nil
}

// RemoveRole revokes a role from a member.
func (s *RoleService) RemoveRole(ctx context.Context, guildID, actorID, targetUserID, roleID int64) error {
	role, err := s.GetRole(ctx, guildID, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return Conflict("SYSTEM_ROLE", "system roles cannot be removed")
	}

	member, err := s.members.GetByGuildAndUser(ctx, guildID, targetUserID)
	if err != nil {
		return Internal("INTERNAL", "internal error")
	}
	if member == nil {
		return Conflict("NOT_A_MEMBER", "target user is not a member of this guild")
	}

	ok, err := s.guard.CanManage(ctx, guildID, actorID, role)
	if err != nil {
		return err
	}
	if !ok {
		return RoleHierarchyError("cannot remove a role at or above your highest rank")
	}

	if err := s.members.RemoveRole(ctx, guildID, targetUserID, roleID); err != nil {
		return Internal("INTERNAL", "internal error")
	}

	s.perms.InvalidateMember(ctx, guildID, targetUserID)
	s.audit.Record(ctx, audit.NewEvent(guildID, actorID, audit.ActionRoleUnassign, roleID, map[string]any{
		"user_id": targetUserID,
	}))
	return nil
}

// GetMemberRoles returns the roles held by a member, highest rank first.
func (s *RoleService) GetMemberRoles(ctx context.Context, guildID, userID int64) ([]models.Role, error) {
	member, err := s.members.GetByGuildAndUser(ctx, guildID, userID)
	if err != nil {
		return nil, Internal("INTERNAL", "internal error")
	}
	if member == nil {
		return nil, NotFound("NOT_FOUND", "member not found")
	}

	roles, err := s.roles.GetByMember(ctx, guildID, userID)
	if err != nil {
		return nil, Internal("INTERNAL", "internal error")
	}
	if roles == nil {
		roles = []models.Role{}
	}
	return roles, nil
}
