package models

// Role names reserved for the two system roles created with every guild.
const (
	RoleNameOwner   = "Owner"
	RoleNameGeneral = "General"
)

// Role hierarchy positions. Lower value = higher authority. The Owner role
// is always rank 0, the General role is always the lowest-rank sentinel,
// and custom roles occupy the range strictly between them.
const (
	RolePositionOwner   = 0
	RolePositionGeneral = 999

	MinCustomRolePosition = 1
	MaxCustomRolePosition = RolePositionGeneral - 1
)

type Role struct {
	ID          int64  `json:"id,string"`
	GuildID     int64  `json:"guild_id,string"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Permissions int64  `json:"permissions,string"`
	Position    int    `json:"position"`
	IsSystem    bool   `json:"is_system"`
}
