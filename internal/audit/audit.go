// Package audit defines the events emitted by role and channel mutations
// and the sink they are delivered to. Delivery is fire-and-forget: a sink
// that drops or fails an event must never fail the governing operation,
// which is why Record returns nothing.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Action identifies what kind of mutation an event describes.
type Action string

const (
	ActionRoleCreate    Action = "role.create"
	ActionRoleUpdate    Action = "role.update"
	ActionRoleDelete    Action = "role.delete"
	ActionRoleReorder   Action = "role.reorder"
	ActionRoleAssign    Action = "role.assign"
	ActionRoleUnassign  Action = "role.unassign"
	ActionChannelCreate Action = "channel.create"
	ActionChannelUpdate Action = "channel.update"
	ActionChannelDelete Action = "channel.delete"
	ActionGuildCreate   Action = "guild.create"
	ActionGuildDelete   Action = "guild.delete"
	ActionMemberJoin    Action = "member.join"
	ActionMemberLeave   Action = "member.leave"
)

// Event is one audit record. Changes is an opaque payload describing what
// the mutation touched; its shape is up to the emitter.
type Event struct {
	ID       uuid.UUID      `json:"id"`
	GuildID  int64          `json:"guild_id,string"`
	ActorID  int64          `json:"actor_id,string"`
	Action   Action         `json:"action"`
	TargetID int64          `json:"target_id,string"`
	Changes  map[string]any `json:"changes,omitempty"`
	At       time.Time      `json:"at"`
}

// Sink receives audit events. Implementations must be safe for concurrent
// use and must not block the caller for long.
type Sink interface {
	Record(ctx context.Context, ev Event)
}

// NewEvent stamps an event with a fresh ID and the current time.
func NewEvent(guildID, actorID int64, action Action, targetID int64, changes map[string]any) Event {
	return Event{
		ID:       uuid.New(),
		GuildID:  guildID,
		ActorID:  actorID,
		Action:   action,
		TargetID: targetID,
		Changes:  changes,
		At:       time.Now().UTC(),
	}
}

// LogSink writes audit events to a slog.Logger. It is the default sink when
// no external audit pipeline is wired in.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Record(ctx context.Context, ev Event) {
	s.log.InfoContext(ctx, "audit",
		"event_id", ev.ID.String(),
		"guild_id", ev.GuildID,
		"actor_id", ev.ActorID,
		"action", string(ev.Action),
		"target_id", ev.TargetID,
		"changes", ev.Changes,
	)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) {}
