package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ntarasov/bastion/internal/cache"
	"github.com/ntarasov/bastion/internal/config"
	"github.com/ntarasov/bastion/internal/database"
	"github.com/ntarasov/bastion/internal/models"
	"github.com/ntarasov/bastion/internal/permissions"
	"github.com/ntarasov/bastion/internal/service"
	"github.com/ntarasov/bastion/internal/snowflake"
)

// Set via -ldflags at build time.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "migrate":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: bastion-cli migrate")
			fmt.Println()
			fmt.Println("Run database migrations from the migrations/ directory.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  DATABASE_URL  PostgreSQL connection string (required)")
			return
		}
		os.Exit(runMigrate())
	case "seed":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: bastion-cli seed")
			fmt.Println()
			fmt.Println("Seed the database with demo data: a guild with system roles, members, and channels.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  DATABASE_URL  PostgreSQL connection string (required)")
			return
		}
		os.Exit(runSeed())
	case "check":
		if hasFlag("--help", os.Args[2:]) {
			fmt.Println("Usage: bastion-cli check <guild-id> <user-id>")
			fmt.Println()
			fmt.Println("Resolve a member's effective permissions and rank in a guild.")
			fmt.Println()
			fmt.Println("Environment:")
			fmt.Println("  DATABASE_URL  PostgreSQL connection string (required)")
			fmt.Println("  REDIS_URL     Redis URL for the permission cache (optional)")
			return
		}
		os.Exit(runCheck(os.Args[2:]))
	case "version":
		fmt.Printf("bastion-cli %s\n", version)
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: bastion-cli <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate  Run database migrations")
	fmt.Println("  seed     Seed demo data (guild, system roles, members, channels)")
	fmt.Println("  check    Resolve a member's effective permissions in a guild")
	fmt.Println("  version  Print version info")
	fmt.Println()
	fmt.Println("Run 'bastion-cli <command> --help' for details on a command.")
}

func hasFlag(flag string, args []string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "error: %s environment variable is required\n", key)
		os.Exit(1)
	}
	return v
}

// --- migrate ---

func runMigrate() int {
	dbURL := requireEnv("DATABASE_URL")

	fmt.Println("connecting to database...")
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: migration init failed: %v\n", err)
		return 1
	}
	defer m.Close()

	fmt.Println("running migrations...")
	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		fmt.Fprintf(os.Stderr, "error: migration failed: %v\n", upErr)
		return 1
	}

	v, dirty, _ := m.Version()
	if upErr == migrate.ErrNoChange {
		fmt.Printf("no new migrations (current version: %d)\n", v)
	} else {
		fmt.Printf("migrations applied (version: %d, dirty: %v)\n", v, dirty)
	}
	return 0
}

// --- check ---

func runCheck(args []string) int {
	var positional []string
	for _, a := range args {
		if len(a) > 0 && a[0] != '-' {
			positional = append(positional, a)
		}
	}
	if len(positional) < 2 {
		fmt.Fprintln(os.Stderr, "error: check requires <guild-id> and <user-id>")
		return 1
	}
	guildID, err := strconv.ParseInt(positional[0], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid guild id %q\n", positional[0])
		return 1
	}
	userID, err := strconv.ParseInt(positional[1], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid user id %q\n", positional[1])
		return 1
	}

	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: database connection failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	guilds := database.NewGuildRepository(pool)
	roles := database.NewRoleRepository(pool)

	var permCache service.PermissionCache
	if c, err := cache.New(cfg.RedisURL); err != nil {
		logger.Warn("redis unavailable, resolving without cache", "error", err)
	} else {
		permCache = c
		defer c.Close()
	}

	resolver := service.NewPermissionResolver(guilds, roles, permCache, logger)
	guard := service.NewRoleHierarchyGuard(guilds, roles, resolver)

	resolved, err := resolver.Resolve(ctx, guildID, userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: resolving permissions: %v\n", err)
		return 1
	}
	rank, err := guard.HighestRank(ctx, guildID, userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: computing rank: %v\n", err)
		return 1
	}

	fmt.Printf("guild:        %d\n", guildID)
	fmt.Printf("user:         %d\n", userID)
	fmt.Printf("highest rank: %d\n", rank)
	fmt.Printf("permissions:  %s (0x%X)\n", resolved, int64(resolved))
	return 0
}

// --- seed ---

func runSeed() int {
	dbURL := requireEnv("DATABASE_URL")
	ctx := context.Background()

	fmt.Println("connecting to database...")
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: database connection failed: %v\n", err)
		return 1
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: database ping failed: %v\n", err)
		return 1
	}

	sf, err := snowflake.NewGenerator(0, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: snowflake init failed: %v\n", err)
		return 1
	}

	// Generate IDs. User ids come from the identity service in production,
	// so the demo ones are fixed values.
	aliceID := int64(1000001)
	bobID := int64(1000002)
	guildID := sf.Generate()
	ownerRoleID := sf.Generate()
	generalRoleID := sf.Generate()
	modRoleID := sf.Generate()
	generalChanID := sf.Generate()
	randomChanID := sf.Generate()
	loungeChanID := sf.Generate()

	now := time.Now()

	tx, err := pool.Begin(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: starting transaction: %v\n", err)
		return 1
	}
	defer tx.Rollback(ctx)

	// Guild.
	fmt.Println("creating guild...")
	_, err = tx.Exec(ctx,
		`INSERT INTO guilds (id, name, owner_id, created_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO NOTHING`,
		guildID.Int64(), "Demo Server", aliceID, now,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating guild: %v\n", err)
		return 1
	}

	// System roles plus one custom role.
	fmt.Println("creating roles...")
	_, err = tx.Exec(ctx,
		`INSERT INTO roles (id, guild_id, name, permissions, position, is_system)
		 VALUES ($1,$2,$3,$4,$5,true), ($6,$7,$8,$9,$10,true), ($11,$12,$13,$14,$15,false)
		 ON CONFLICT (id) DO NOTHING`,
		ownerRoleID.Int64(), guildID.Int64(), models.RoleNameOwner, int64(permissions.PermAdministrator), models.RolePositionOwner,
		generalRoleID.Int64(), guildID.Int64(), models.RoleNameGeneral, int64(permissions.DefaultGeneralPerms), models.RolePositionGeneral,
		modRoleID.Int64(), guildID.Int64(), "Moderator", int64(permissions.PermManageRoles|permissions.PermManageChannels|permissions.PermKickMembers), models.MinCustomRolePosition,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating roles: %v\n", err)
		return 1
	}

	// Channels: two text, one voice. Positions restart per type.
	fmt.Println("creating channels...")
	_, err = tx.Exec(ctx,
		`INSERT INTO channels (id, guild_id, name, type, position) VALUES ($1,$2,$3,0,0), ($4,$5,$6,0,1), ($7,$8,$9,2,0)
		 ON CONFLICT (id) DO NOTHING`,
		generalChanID.Int64(), guildID.Int64(), "general",
		randomChanID.Int64(), guildID.Int64(), "random",
		loungeChanID.Int64(), guildID.Int64(), "Lounge",
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating channels: %v\n", err)
		return 1
	}

	// Members.
	fmt.Println("creating members...")
	_, err = tx.Exec(ctx,
		`INSERT INTO members (guild_id, user_id, joined_at) VALUES ($1,$2,$3), ($4,$5,$6)
		 ON CONFLICT (guild_id, user_id) DO NOTHING`,
		guildID.Int64(), aliceID, now,
		guildID.Int64(), bobID, now,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating members: %v\n", err)
		return 1
	}

	// Role assignments: Alice owns the guild, Bob moderates. Everyone
	// holds General.
	fmt.Println("assigning roles...")
	_, err = tx.Exec(ctx,
		`INSERT INTO member_roles (guild_id, user_id, role_id)
		 VALUES ($1,$2,$3), ($4,$5,$6), ($7,$8,$9), ($10,$11,$12)
		 ON CONFLICT (guild_id, user_id, role_id) DO NOTHING`,
		guildID.Int64(), aliceID, ownerRoleID.Int64(),
		guildID.Int64(), aliceID, generalRoleID.Int64(),
		guildID.Int64(), bobID, modRoleID.Int64(),
		guildID.Int64(), bobID, generalRoleID.Int64(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: assigning roles: %v\n", err)
		return 1
	}

	if err := tx.Commit(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: committing seed: %v\n", err)
		return 1
	}

	fmt.Println("seed complete")
	fmt.Printf("  guild:   %d (Demo Server)\n", guildID.Int64())
	fmt.Printf("  owner:   %d (alice)\n", aliceID)
	fmt.Printf("  member:  %d (bob, Moderator)\n", bobID)
	return 0
}
