package models

type ChannelType int

const (
	ChannelTypeText         ChannelType = 0
	ChannelTypeVoice        ChannelType = 2
	ChannelTypeAnnouncement ChannelType = 5
)

// Valid reports whether t is one of the supported channel kinds.
func (t ChannelType) Valid() bool {
	switch t {
	case ChannelTypeText, ChannelTypeVoice, ChannelTypeAnnouncement:
		return true
	}
	return false
}

// Channel positions are zero-based and contiguous within a
// (guild, channel type) scope; channels of different types in the same
// guild order independently.
type Channel struct {
	ID       int64       `json:"id,string"`
	GuildID  int64       `json:"guild_id,string"`
	Name     string      `json:"name"`
	Type     ChannelType `json:"type"`
	Position int         `json:"position"`
	Topic    *string     `json:"topic,omitempty"`
}
