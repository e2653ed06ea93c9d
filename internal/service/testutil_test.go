package service

import (
	"context"
	"sync"

	"github.com/ntarasov/bastion/internal/audit"
	"github.com/ntarasov/bastion/internal/database"
	"github.com/ntarasov/bastion/internal/models"
	"github.com/ntarasov/bastion/internal/permissions"
	"github.com/ntarasov/bastion/internal/snowflake"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func testSnowflake() *snowflake.Generator {
	sf, _ := snowflake.NewGenerator(1, 1)
	return sf
}

// Fixture ids shared across service tests.
const (
	testGuildID  int64 = 1
	testOwnerID  int64 = 10
	testModID    int64 = 20 // member holding the Moderator role
	testPlainID  int64 = 21 // member holding only General
	testOutsider int64 = 99 // not a member

	ownerRoleID   int64 = 100
	generalRoleID int64 = 101
	modRoleID     int64 = 102
	helperRoleID  int64 = 103
)

func testGuild() *models.Guild {
	return &models.Guild{ID: testGuildID, Name: "TestGuild", OwnerID: testOwnerID}
}

func testRoles() []models.Role {
	return []models.Role{
		{ID: ownerRoleID, GuildID: testGuildID, Name: models.RoleNameOwner,
			Permissions: int64(permissions.PermAdministrator), Position: models.RolePositionOwner, IsSystem: true},
		{ID: modRoleID, GuildID: testGuildID, Name: "Moderator",
			Permissions: int64(permissions.PermManageRoles | permissions.PermManageChannels | permissions.PermKickMembers), Position: 1},
		{ID: helperRoleID, GuildID: testGuildID, Name: "Helper",
			Permissions: int64(permissions.PermManageMessages), Position: 2},
		{ID: generalRoleID, GuildID: testGuildID, Name: models.RoleNameGeneral,
			Permissions: int64(permissions.DefaultGeneralPerms), Position: models.RolePositionGeneral, IsSystem: true},
	}
}

func rolesByIDs(ids ...int64) []models.Role {
	var out []models.Role
	for _, r := range testRoles() {
		for _, id := range ids {
			if r.ID == id {
				out = append(out, r)
			}
		}
	}
	return out
}

func roleByID(id int64) *models.Role {
	for _, r := range testRoles() {
		if r.ID == id {
			role := r
			return &role
		}
	}
	return nil
}

// fixtureRepos returns mocks preloaded with the standard test guild: an
// owner, a moderator (Moderator + General), a plain member (General only),
// and an outsider who is not a member.
func fixtureRepos() (*mockGuildRepo, *mockRoleRepo, *mockMemberRepo) {
	guilds := &mockGuildRepo{
		GetByIDFn: func(ctx context.Context, id int64) (*models.Guild, error) {
			if id == testGuildID {
				return testGuild(), nil
			}
			return nil, nil
		},
	}
	roles := &mockRoleRepo{
		GetByGuildIDFn: func(ctx context.Context, guildID int64) ([]models.Role, error) {
			if guildID == testGuildID {
				return testRoles(), nil
			}
			return nil, nil
		},
		GetByIDFn: func(ctx context.Context, id int64) (*models.Role, error) {
			return roleByID(id), nil
		},
		GetByGuildAndNameFn: func(ctx context.Context, guildID int64, name string) (*models.Role, error) {
			for _, r := range testRoles() {
				if r.GuildID == guildID && r.Name == name {
					role := r
					return &role, nil
				}
			}
			return nil, nil
		},
		GetByMemberFn: func(ctx context.Context, guildID, userID int64) ([]models.Role, error) {
			switch userID {
			case testOwnerID:
				return rolesByIDs(ownerRoleID, generalRoleID), nil
			case testModID:
				return rolesByIDs(modRoleID, generalRoleID), nil
			case testPlainID:
				return rolesByIDs(generalRoleID), nil
			}
			return nil, nil
		},
	}
	members := &mockMemberRepo{
		GetByGuildAndUserFn: func(ctx context.Context, guildID, userID int64) (*models.Member, error) {
			switch userID {
			case testOwnerID, testModID, testPlainID:
				return &models.Member{GuildID: guildID, UserID: userID}, nil
			}
			return nil, nil
		},
	}
	return guilds, roles, members
}

func testResolver(guilds *mockGuildRepo, roles *mockRoleRepo) *PermissionResolver {
	return NewPermissionResolver(guilds, roles, nil, nil)
}

// ---------------------------------------------------------------------------
// Recording audit sink
// ---------------------------------------------------------------------------

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Record(_ context.Context, ev audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) actions() []audit.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.Action, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Action
	}
	return out
}

// ---------------------------------------------------------------------------
// Mock repositories
// ---------------------------------------------------------------------------

// mockGuildRepo implements database.GuildRepository.
type mockGuildRepo struct {
	CreateWithDefaultsFn func(ctx context.Context, guild *models.Guild, ownerRole, generalRole *models.Role, channels []models.Channel) error
	GetByIDFn            func(ctx context.Context, id int64) (*models.Guild, error)
	DeleteFn             func(ctx context.Context, id int64) error
}

func (m *mockGuildRepo) CreateWithDefaults(ctx context.Context, guild *models.Guild, ownerRole, generalRole *models.Role, channels []models.Channel) error {
	if m.CreateWithDefaultsFn != nil {
		return m.CreateWithDefaultsFn(ctx, guild, ownerRole, generalRole, channels)
	}
	return nil
}

func (m *mockGuildRepo) GetByID(ctx context.Context, id int64) (*models.Guild, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockGuildRepo) Delete(ctx context.Context, id int64) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil
}

// mockRoleRepo implements database.RoleRepository.
type mockRoleRepo struct {
	CreateCustomFn      func(ctx context.Context, role *models.Role) error
	GetByIDFn           func(ctx context.Context, id int64) (*models.Role, error)
	GetByGuildIDFn      func(ctx context.Context, guildID int64) ([]models.Role, error)
	GetByGuildAndNameFn func(ctx context.Context, guildID int64, name string) (*models.Role, error)
	GetByMemberFn       func(ctx context.Context, guildID, userID int64) ([]models.Role, error)
	UpdateFn            func(ctx context.Context, role *models.Role) error
	DeleteCascadeFn     func(ctx context.Context, id int64) error
	UpdatePositionsFn   func(ctx context.Context, guildID int64, changes []database.RolePosition) error
}

func (m *mockRoleRepo) CreateCustom(ctx context.Context, role *models.Role) error {
	if m.CreateCustomFn != nil {
		return m.CreateCustomFn(ctx, role)
	}
	return nil
}

func (m *mockRoleRepo) GetByID(ctx context.Context, id int64) (*models.Role, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockRoleRepo) GetByGuildID(ctx context.Context, guildID int64) ([]models.Role, error) {
	if m.GetByGuildIDFn != nil {
		return m.GetByGuildIDFn(ctx, guildID)
	}
	return nil, nil
}

func (m *mockRoleRepo) GetByGuildAndName(ctx context.Context, guildID int64, name string) (*models.Role, error) {
	if m.GetByGuildAndNameFn != nil {
		return m.GetByGuildAndNameFn(ctx, guildID, name)
	}
	return nil, nil
}

func (m *mockRoleRepo) GetByMember(ctx context.Context, guildID, userID int64) ([]models.Role, error) {
	if m.GetByMemberFn != nil {
		return m.GetByMemberFn(ctx, guildID, userID)
	}
	return nil, nil
}

func (m *mockRoleRepo) Update(ctx context.Context, role *models.Role) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, role)
	}
	return nil
}

func (m *mockRoleRepo) DeleteCascade(ctx context.Context, id int64) error {
	if m.DeleteCascadeFn != nil {
		return m.DeleteCascadeFn(ctx, id)
	}
	return nil
}

func (m *mockRoleRepo) UpdatePositions(ctx context.Context, guildID int64, changes []database.RolePosition) error {
	if m.UpdatePositionsFn != nil {
		return m.UpdatePositionsFn(ctx, guildID, changes)
	}
	return nil
}

// mockMemberRepo implements database.MemberRepository.
type mockMemberRepo struct {
	CreateWithRoleFn    func(ctx context.Context, member *models.Member, roleID int64) error
	GetByGuildAndUserFn func(ctx context.Context, guildID, userID int64) (*models.Member, error)
	GetByGuildIDFn      func(ctx context.Context, guildID int64, limit, offset int) ([]models.Member, error)
	DeleteFn            func(ctx context.Context, guildID, userID int64) error
	AddRoleFn           func(ctx context.Context, guildID, userID, roleID int64) error
	RemoveRoleFn        func(ctx context.Context, guildID, userID, roleID int64) error
}

func (m *mockMemberRepo) CreateWithRole(ctx context.Context, member *models.Member, roleID int64) error {
	if m.CreateWithRoleFn != nil {
		return m.CreateWithRoleFn(ctx, member, roleID)
	}
	return nil
}

func (m *mockMemberRepo) GetByGuildAndUser(ctx context.Context, guildID, userID int64) (*models.Member, error) {
	if m.GetByGuildAndUserFn != nil {
		return m.GetByGuildAndUserFn(ctx, guildID, userID)
	}
	return nil, nil
}

func (m *mockMemberRepo) GetByGuildID(ctx context.Context, guildID int64, limit, offset int) ([]models.Member, error) {
	if m.GetByGuildIDFn != nil {
		return m.GetByGuildIDFn(ctx, guildID, limit, offset)
	}
	return nil, nil
}

func (m *mockMemberRepo) Delete(ctx context.Context, guildID, userID int64) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, guildID, userID)
	}
	return nil
}

func (m *mockMemberRepo) AddRole(ctx context.Context, guildID, userID, roleID int64) error {
	if m.AddRoleFn != nil {
		return m.AddRoleFn(ctx, guildID, userID, roleID)
	}
	return nil
}

func (m *mockMemberRepo) RemoveRole(ctx context.Context, guildID, userID, roleID int64) error {
	if m.RemoveRoleFn != nil {
		return m.RemoveRoleFn(ctx, guildID, userID, roleID)
	}
	return nil
}

// mockChannelRepo implements database.ChannelRepository.
type mockChannelRepo struct {
	CreateInScopeFn    func(ctx context.Context, channel *models.Channel) error
	GetByIDFn          func(ctx context.Context, id int64) (*models.Channel, error)
	GetByGuildIDFn     func(ctx context.Context, guildID int64) ([]models.Channel, error)
	GetScopeFn         func(ctx context.Context, guildID int64, channelType models.ChannelType) ([]models.Channel, error)
	UpdateFn           func(ctx context.Context, channel *models.Channel) error
	MoveFn             func(ctx context.Context, channelID int64, newPos int) error
	DeleteAndCompactFn func(ctx context.Context, channelID int64) error
}

func (m *mockChannelRepo) CreateInScope(ctx context.Context, channel *models.Channel) error {
	if m.CreateInScopeFn != nil {
		return m.CreateInScopeFn(ctx, channel)
	}
	return nil
}

func (m *mockChannelRepo) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockChannelRepo) GetByGuildID(ctx context.Context, guildID int64) ([]models.Channel, error) {
	if m.GetByGuildIDFn != nil {
		return m.GetByGuildIDFn(ctx, guildID)
	}
	return nil, nil
}

func (m *mockChannelRepo) GetScope(ctx context.Context, guildID int64, channelType models.ChannelType) ([]models.Channel, error) {
	if m.GetScopeFn != nil {
		return m.GetScopeFn(ctx, guildID, channelType)
	}
	return nil, nil
}

func (m *mockChannelRepo) Update(ctx context.Context, channel *models.Channel) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, channel)
	}
	return nil
}

func (m *mockChannelRepo) Move(ctx context.Context, channelID int64, newPos int) error {
	if m.MoveFn != nil {
		return m.MoveFn(ctx, channelID, newPos)
	}
	return nil
}

func (m *mockChannelRepo) DeleteAndCompact(ctx context.Context, channelID int64) error {
	if m.DeleteAndCompactFn != nil {
		return m.DeleteAndCompactFn(ctx, channelID)
	}
	return nil
}
