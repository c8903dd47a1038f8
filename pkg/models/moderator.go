package models

// Moderator is a role assignment scoped to one activity. The host is always
// implicitly a moderator and cannot be demoted from the client.
type Moderator struct {
	UserID string `json:"userId"`
	IsHost bool   `json:"isHost"`
}

// AudioProgress is the derived playback position of the single actively
// tracked audio message. It is published by the playback controller and
// never persisted.
type AudioProgress struct {
	ID        string  `json:"id"`
	Position  float64 `json:"position"`
	Duration  float64 `json:"duration"`
	IsPlaying bool    `json:"isPlaying"`
}
