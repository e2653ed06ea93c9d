// Package ordering computes position shifts for channels within one
// (guild, channel type) scope. The planners are pure functions over a
// snapshot of the scope's siblings; callers read the scope under a lock,
// plan, and apply the result as a single batch write so the contiguity
// invariant (positions are exactly {0..n-1}) survives concurrent writers.
package ordering

import (
	"errors"

	"github.com/ntarasov/bastion/internal/models"
)

// ErrNotInScope is returned when the subject channel is absent from the
// sibling snapshot.
var ErrNotInScope = errors.New("ordering: channel not in scope")

// PositionChange is one row of a batch position update.
type PositionChange struct {
	ChannelID int64
	Position  int
}

// NextPosition returns the position for a channel appended to the scope:
// one past the current maximum, or 0 for an empty scope.
func NextPosition(siblings []models.Channel) int {
	next := 0
	for _, ch := range siblings {
		if ch.Position >= next {
			next = ch.Position + 1
		}
	}
	return next
}

// PlanMove computes the batch of position changes that moves channelID to
// newPos within its scope. Requested positions outside [0, n-1] are clamped.
// Moving a channel to its current position yields no changes.
func PlanMove(siblings []models.Channel, channelID int64, newPos int) ([]PositionChange, error) {
	old, ok := positionOf(siblings, channelID)
	if !ok {
		return nil, ErrNotInScope
	}

	if newPos < 0 {
		newPos = 0
	}
	if max := len(siblings) - 1; newPos > max {
		newPos = max
	}
	if newPos == old {
		return nil, nil
	}

	var changes []PositionChange
	for _, ch := range siblings {
		switch {
		case ch.ID == channelID:
			changes = append(changes, PositionChange{ChannelID: ch.ID, Position: newPos})
		case newPos < old && ch.Position >= newPos && ch.Position < old:
			// Moving toward the front: displaced siblings shift back.
			changes = append(changes, PositionChange{ChannelID: ch.ID, Position: ch.Position + 1})
		case newPos > old && ch.Position > old && ch.Position <= newPos:
			// Moving toward the back: displaced siblings fill the gap.
			changes = append(changes, PositionChange{ChannelID: ch.ID, Position: ch.Position - 1})
		}
	}
	return changes, nil
}

// PlanRemoval computes the compaction batch after deleting channelID:
// every sibling positioned after it moves down by one. The deleted channel
// itself is not part of the returned changes.
func PlanRemoval(siblings []models.Channel, channelID int64) ([]PositionChange, error) {
	old, ok := positionOf(siblings, channelID)
	if !ok {
		return nil, ErrNotInScope
	}

	var changes []PositionChange
	for _, ch := range siblings {
		if ch.ID != channelID && ch.Position > old {
			changes = append(changes, PositionChange{ChannelID: ch.ID, Position: ch.Position - 1})
		}
	}
	return changes, nil
}

// Contiguous reports whether the scope's positions are exactly {0..n-1}
// with no duplicates.
func Contiguous(siblings []models.Channel) bool {
	seen := make([]bool, len(siblings))
	for _, ch := range siblings {
		if ch.Position < 0 || ch.Position >= len(siblings) || seen[ch.Position] {
			return false
		}
		seen[ch.Position] = true
	}
	return true
}

func positionOf(siblings []models.Channel, channelID int64) (int, bool) {
	for _, ch := range siblings {
		if ch.ID == channelID {
			return ch.Position, true
		}
	}
	return 0, false
}
