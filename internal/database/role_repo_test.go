package database

import (
	"context"
	"errors"
	"testing"

	"github.com/ntarasov/bastion/internal/models"
)

func TestRoleRepo_CreateCustom_AssignsPositions(t *testing.T) {
	pool := testPool(t)
	guildRepo := NewGuildRepository(pool)
	repo := NewRoleRepository(pool)

	guild := createTestGuild(t, guildRepo, nextID())

	first := createTestRole(t, repo, guild.ID, "Moderator")
	second := createTestRole(t, repo, guild.ID, "Helper")

	if first.Position != models.MinCustomRolePosition {
		t.Errorf("first custom role at %d, want %d", first.Position, models.MinCustomRolePosition)
	}
	if second.Position != first.Position+1 {
		t.Errorf("second custom role at %d, want %d", second.Position, first.Position+1)
	}
}

func TestRoleRepo_CreateCustom_DuplicateName(t *testing.T) {
	pool := testPool(t)
	guildRepo := NewGuildRepository(pool)
	repo := NewRoleRepository(pool)
	ctx := context.Background()

	guild := createTestGuild(t, guildRepo, nextID())
	createTestRole(t, repo, guild.ID, "Moderator")

	dup := &models.Role{ID: nextID(), GuildID: guild.ID, Name: "Moderator"}
	err := repo.CreateCustom(ctx, dup)
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("CreateCustom duplicate = %v, want ErrDuplicateName", err)
	}
}

func TestRoleRepo_Update(t *testing.T) {
	pool := testPool(t)
	guildRepo := NewGuildRepository(pool)
	repo := NewRoleRepository(pool)
	ctx := context.Background()

	guild := createTestGuild(t, guildRepo, nextID())
	role := createTestRole(t, repo, guild.ID, "Before")

	role.Name = "After"
	role.Color = 0x00FF00
	role.Permissions = 0x10
	if err := repo.Update(ctx, role); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.GetByID(ctx, role.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "After" {
		t.Errorf("Name = %q, want %q", got.Name, "After")
	}
	if got.Color != 0x00FF00 {
		t.Errorf("Color = %d, want %d", got.Color, 0x00FF00)
	}
	if got.Permissions != 0x10 {
		t.Errorf("Permissions = %d, want %d", got.Permissions, 0x10)
	}
}

func TestRoleRepo_DeleteCascade_RemovesAssignments(t *testing.T) {
	pool := testPool(t)
	guildRepo := NewGuildRepository(pool)
	repo := NewRoleRepository(pool)
	memberRepo := NewMemberRepository(pool)
	ctx := context.Background()

	ownerID := nextID()
	guild := createTestGuild(t, guildRepo, ownerID)
	role := createTestRole(t, repo, guild.ID, "ToDelete")

	if err := memberRepo.AddRole(ctx, guild.ID, ownerID, role.ID); err != nil {
		t.Fatalf("AddRole: %v", err)
	}

	if err := repo.DeleteCascade(ctx, role.ID); err != nil {
		t.Fatalf("DeleteCascade: %v", err)
	}

	got, err := repo.GetByID(ctx, role.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Error("expected nil after DeleteCascade")
	}

	roles, err := repo.GetByMember(ctx, guild.ID, ownerID)
	if err != nil {
		t.Fatalf("GetByMember: %v", err)
	}
	for _, r := range roles {
		if r.ID == role.ID {
			t.Error("assignment survived DeleteCascade")
		}
	}
}

func TestRoleRepo_GetByMember_OrdersByPosition(t *testing.T) {
	pool := testPool(t)
	guildRepo := NewGuildRepository(pool)
	repo := NewRoleRepository(pool)
	memberRepo := NewMemberRepository(pool)
	ctx := context.Background()

	ownerID := nextID()
	guild := createTestGuild(t, guildRepo, ownerID)
	mod := createTestRole(t, repo, guild.ID, "Moderator")

	if err := memberRepo.AddRole(ctx, guild.ID, ownerID, mod.ID); err != nil {
		t.Fatalf("AddRole: %v", err)
	}

	roles, err := repo.GetByMember(ctx, guild.ID, ownerID)
	if err != nil {
		t.Fatalf("GetByMember: %v", err)
	}
	if len(roles) != 3 {
		t.Fatalf("expected 3 roles (Owner, Moderator, General), got %d", len(roles))
	}
	for i := 1; i < len(roles); i++ {
		if roles[i-1].Position > roles[i].Position {
			t.Errorf("roles not ordered by position: %d > %d", roles[i-1].Position, roles[i].Position)
		}
	}
}

func TestRoleRepo_UpdatePositions(t *testing.T) {
	pool := testPool(t)
	guildRepo := NewGuildRepository(pool)
	repo := NewRoleRepository(pool)
	ctx := context.Background()

	guild := createTestGuild(t, guildRepo, nextID())
	a := createTestRole(t, repo, guild.ID, "A")
	b := createTestRole(t, repo, guild.ID, "B")
	c := createTestRole(t, repo, guild.ID, "C")

	// Reverse the custom roles: C=1, B=2, A=3.
	changes := []RolePosition{
		{RoleID: c.ID, Position: 1},
		{RoleID: b.ID, Position: 2},
		{RoleID: a.ID, Position: 3},
	}
	if err := repo.UpdatePositions(ctx, guild.ID, changes); err != nil {
		t.Fatalf("UpdatePositions: %v", err)
	}

	roles, err := repo.GetByGuildID(ctx, guild.ID)
	if err != nil {
		t.Fatalf("GetByGuildID: %v", err)
	}
	want := map[int64]int{c.ID: 1, b.ID: 2, a.ID: 3}
	for _, r := range roles {
		if wantPos, ok := want[r.ID]; ok && r.Position != wantPos {
			t.Errorf("role %q at %d, want %d", r.Name, r.Position, wantPos)
		}
	}
}

func TestRoleRepo_GetByGuildAndName(t *testing.T) {
	pool := testPool(t)
	guildRepo := NewGuildRepository(pool)
	repo := NewRoleRepository(pool)
	ctx := context.Background()

	guild := createTestGuild(t, guildRepo, nextID())

	got, err := repo.GetByGuildAndName(ctx, guild.ID, models.RoleNameGeneral)
	if err != nil {
		t.Fatalf("GetByGuildAndName: %v", err)
	}
	if got == nil {
		t.Fatal("General role not found")
	}
	if !got.IsSystem {
		t.Error("General role not marked as system")
	}

	got, err = repo.GetByGuildAndName(ctx, guild.ID, "NoSuchRole")
	if err != nil {
		t.Fatalf("GetByGuildAndName: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}
