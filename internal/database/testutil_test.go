package database

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ntarasov/bastion/internal/models"
	"github.com/ntarasov/bastion/internal/permissions"
)

// testPool returns a pgxpool.Pool connected to the test database.
// It skips the test if DATABASE_URL is not set.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

// testIDCounter provides unique IDs across all tests in the package.
// Starts well above zero to avoid conflicts with any existing data.
var testIDCounter int64 = 100000

func nextID() int64 {
	return atomic.AddInt64(&testIDCounter, 1)
}

// createTestGuild bootstraps a guild with its two system roles and the
// owner's membership, mirroring what the service does on guild creation.
func createTestGuild(t *testing.T, repo GuildRepository, ownerID int64) *models.Guild {
	t.Helper()
	ctx := context.Background()
	guild := &models.Guild{
		ID:        nextID(),
		Name:      "TestGuild",
		OwnerID:   ownerID,
		CreatedAt: time.Now().Truncate(time.Microsecond),
	}
	ownerRole := &models.Role{
		ID:          nextID(),
		GuildID:     guild.ID,
		Name:        models.RoleNameOwner,
		Permissions: int64(permissions.PermAdministrator),
		Position:    models.RolePositionOwner,
		IsSystem:    true,
	}
	generalRole := &models.Role{
		ID:          nextID(),
		GuildID:     guild.ID,
		Name:        models.RoleNameGeneral,
		Permissions: int64(permissions.DefaultGeneralPerms),
		Position:    models.RolePositionGeneral,
		IsSystem:    true,
	}
	if err := repo.CreateWithDefaults(ctx, guild, ownerRole, generalRole, nil); err != nil {
		t.Fatalf("createTestGuild: %v", err)
	}
	t.Cleanup(func() { _ = repo.Delete(ctx, guild.ID) })
	return guild
}

// createTestRole creates a custom role at the next free position.
func createTestRole(t *testing.T, repo RoleRepository, guildID int64, name string) *models.Role {
	t.Helper()
	ctx := context.Background()
	role := &models.Role{
		ID:      nextID(),
		GuildID: guildID,
		Name:    name,
	}
	if err := repo.CreateCustom(ctx, role); err != nil {
		t.Fatalf("createTestRole: %v", err)
	}
	t.Cleanup(func() { _ = repo.DeleteCascade(ctx, role.ID) })
	return role
}

// createTestChannel appends a channel to its type scope.
func createTestChannel(t *testing.T, repo ChannelRepository, guildID int64, name string, channelType models.ChannelType) *models.Channel {
	t.Helper()
	ctx := context.Background()
	channel := &models.Channel{
		ID:      nextID(),
		GuildID: guildID,
		Name:    name,
		Type:    channelType,
	}
	if err := repo.CreateInScope(ctx, channel); err != nil {
		t.Fatalf("createTestChannel: %v", err)
	}
	return channel
}
