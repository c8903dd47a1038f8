// Package rules is the thin permission layer consulted by the UI before it
// invokes a store mutation. The store re-checks every rule itself; these
// predicates exist so unauthorized actions are never reachable in the first
// place, not so the store can trust the caller.
package rules

import (
	"sync"

	"chatkit/pkg/models"
	"chatkit/pkg/store"
)

// Roster holds the moderator assignments for one activity. The host is
// always a moderator regardless of the fetched list.
type Roster struct {
	mu     sync.RWMutex
	hostID string
	mods   map[string]models.Moderator
}

// NewRoster returns a roster with only the implicit host assignment.
func NewRoster(hostID string) *Roster {
	return &Roster{hostID: hostID, mods: make(map[string]models.Moderator)}
}

// SetModerators replaces the fetched role assignments.
func (r *Roster) SetModerators(mods []models.Moderator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mods = make(map[string]models.Moderator, len(mods))
	for _, m := range mods {
		r.mods[m.UserID] = m
	}
}

// IsModerator reports whether userID holds the moderator role. The host
// cannot be demoted by the role list.
func (r *Roster) IsModerator(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if userID != "" && userID == r.hostID {
		return true
	}
	_, ok := r.mods[userID]
	return ok
}

// RoleOf maps a user to the store's role enum.
func (r *Roster) RoleOf(userID string) store.Role {
	if r.IsModerator(userID) {
		return store.RoleModerator
	}
	return store.RoleMember
}

// CanPin reports whether the role may pin or unpin messages.
func CanPin(role store.Role) bool {
	return role == store.RoleModerator
}

// CanEdit reports whether userID may edit the message. Only the original
// sender may edit, and only text messages.
func CanEdit(m *models.Message, userID string) bool {
	return m.SenderID == userID && m.Type == models.TypeText
}

// CanDelete reports whether userID with the given role may delete the message.
func CanDelete(m *models.Message, userID string, role store.Role) bool {
	return role == store.RoleModerator || m.SenderID == userID
}
