package permissions

import "strings"

// Permission is a bitfield representing a set of capabilities.
type Permission int64

const (
	PermNone            Permission = 0
	PermViewChannels    Permission = 1 << 0
	PermSendMessages    Permission = 1 << 1
	PermManageMessages  Permission = 1 << 2
	PermManageChannels  Permission = 1 << 3
	PermManageRoles     Permission = 1 << 4
	PermKickMembers     Permission = 1 << 5
	PermBanMembers      Permission = 1 << 6
	PermManageGuild     Permission = 1 << 7
	PermCreateInvite    Permission = 1 << 8
	PermMentionEveryone Permission = 1 << 9
	PermAttachFiles     Permission = 1 << 10
	PermConnect         Permission = 1 << 11 // voice
	PermSpeak           Permission = 1 << 12 // voice
	PermMuteMembers     Permission = 1 << 13 // voice
	PermAdministrator   Permission = 1 << 31 // short-circuits every other check
)

// DefaultGeneralPerms is the permission set given to the General role at
// guild creation, and therefore to every member on join.
var DefaultGeneralPerms = PermViewChannels | PermSendMessages | PermCreateInvite | PermAttachFiles | PermConnect | PermSpeak

// Has returns true if p contains all bits in perm.
func (p Permission) Has(perm Permission) bool { return p&perm == perm }

// Add returns p with the bits from perm set.
func (p Permission) Add(perm Permission) Permission { return p | perm }

// Remove returns p with the bits from perm cleared.
func (p Permission) Remove(perm Permission) Permission { return p &^ perm }

// Allows reports whether a holder of p may perform an action requiring perm.
// Administrator bypasses the bit comparison.
func (p Permission) Allows(perm Permission) bool {
	return p.Has(PermAdministrator) || p.Has(perm)
}

// Combine unions role permission bits. If the union includes the
// Administrator bit the result collapses to exactly PermAdministrator,
// discarding the other bits; callers compare against the collapsed form.
func Combine(bits ...int64) Permission {
	var perms Permission
	for _, b := range bits {
		perms = perms.Add(Permission(b))
	}
	if perms.Has(PermAdministrator) {
		return PermAdministrator
	}
	return perms
}

// permNames maps individual permission bits to their string names.
var permNames = []struct {
	bit  Permission
	name string
}{
	{PermViewChannels, "VIEW_CHANNELS"},
	{PermSendMessages, "SEND_MESSAGES"},
	{PermManageMessages, "MANAGE_MESSAGES"},
	{PermManageChannels, "MANAGE_CHANNELS"},
	{PermManageRoles, "MANAGE_ROLES"},
	{PermKickMembers, "KICK_MEMBERS"},
	{PermBanMembers, "BAN_MEMBERS"},
	{PermManageGuild, "MANAGE_GUILD"},
	{PermCreateInvite, "CREATE_INVITE"},
	{PermMentionEveryone, "MENTION_EVERYONE"},
	{PermAttachFiles, "ATTACH_FILES"},
	{PermConnect, "CONNECT"},
	{PermSpeak, "SPEAK"},
	{PermMuteMembers, "MUTE_MEMBERS"},
	{PermAdministrator, "ADMINISTRATOR"},
}

// String returns a human-readable representation of the permission set,
// listing all set permission names separated by " | ".
func (p Permission) String() string {
	if p == 0 {
		return "NONE"
	}

	var names []string
	for _, entry := range permNames {
		if p.Has(entry.bit) {
			names = append(names, entry.name)
		}
	}

	if len(names) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(names, " | ")
}
