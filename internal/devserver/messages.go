package devserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chatkit/pkg/logger"
	"chatkit/pkg/models"
	"chatkit/pkg/rules"
	"chatkit/pkg/utils"
)

// registerMessages wires the activity chat routes.
func (s *Server) registerMessages(r *mux.Router) {
	r.HandleFunc("/activities/{activityID}/messages", s.listActivityMessages).Methods(http.MethodGet)
	r.HandleFunc("/activities/{activityID}/messages", s.createActivityMessage).Methods(http.MethodPost)
	r.HandleFunc("/activities/{activityID}/messages/{id}", s.editActivityMessage).Methods(http.MethodPut)
	r.HandleFunc("/activities/{activityID}/messages/{id}", s.deleteActivityMessage).Methods(http.MethodDelete)
	r.HandleFunc("/activities/{activityID}/messages/{id}/pin", s.pinActivityMessage).Methods(http.MethodPatch)
	r.HandleFunc("/activities/{activityID}/messages/{id}/react", s.reactActivityMessage).Methods(http.MethodPost)
	r.HandleFunc("/activities/{activityID}/moderators", s.listActivityModerators).Methods(http.MethodGet)
	r.HandleFunc("/activities/{activityID}/moderators", s.putActivityModerators).Methods(http.MethodPut)
}

// roster loads the activity's role assignments into a rules.Roster.
func (s *Server) roster(activityID string) (*rules.Roster, error) {
	mods, err := s.store.listModerators(activityID)
	if err != nil {
		return nil, err
	}
	ro := rules.NewRoster("")
	ro.SetModerators(mods)
	return ro, nil
}

func (s *Server) listActivityMessages(w http.ResponseWriter, r *http.Request) {
	activityID := mux.Vars(r)["activityID"]
	msgs, err := s.store.listMessages(activityID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, msgs)
}

func (s *Server) createActivityMessage(w http.ResponseWriter, r *http.Request) {
	activityID := mux.Vars(r)["activityID"]
	var m models.Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := m.Validate(); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if m.ID == "" {
		m.ID = utils.GenMessageID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if ro, err := s.roster(activityID); err == nil {
		m.IsModerator = ro.IsModerator(m.SenderID)
	}
	if err := s.store.saveMessage(activityID, m); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("message_saved", "activity", activityID, "id", m.ID, "type", string(m.Type))
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

func (s *Server) editActivityMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	m, key, err := s.store.getMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	if m.Type != models.TypeText {
		utils.JSONError(w, http.StatusBadRequest, "only text messages can be edited")
		return
	}
	m.Content = body.Content
	m.IsEdited = true
	if err := s.store.updateMessage(key, m); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func (s *Server) deleteActivityMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	activityID, id := vars["activityID"], vars["id"]
	var body struct {
		UserID string `json:"userId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	m, key, err := s.store.getMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	ro, err := s.roster(activityID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if body.UserID != "" && !rules.CanDelete(&m, body.UserID, ro.RoleOf(body.UserID)) {
		utils.JSONError(w, http.StatusForbidden, "not allowed to delete this message")
		return
	}
	now := time.Now().UTC()
	m.DeletedAt = &now
	if err := s.store.updateMessage(key, m); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("message_deleted", "activity", activityID, "id", id, "by", body.UserID)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) pinActivityMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	activityID, id := vars["activityID"], vars["id"]
	var body struct {
		UserID string `json:"userId"`
		Pin    bool   `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ro, err := s.roster(activityID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ro.IsModerator(body.UserID) {
		utils.JSONError(w, http.StatusForbidden, "moderator role required")
		return
	}
	m, key, err := s.store.getMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	m.IsPinned = body.Pin
	if err := s.store.updateMessage(key, m); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func (s *Server) reactActivityMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		UserID string `json:"userId"`
		Emoji  string `json:"emoji"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.UserID == "" || body.Emoji == "" {
		utils.JSONError(w, http.StatusBadRequest, "userId and emoji are required")
		return
	}
	m, key, err := s.store.getMessage(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	toggleReaction(&m, body.Emoji, body.UserID)
	if err := s.store.updateMessage(key, m); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

// toggleReaction adds the user to the emoji's set, or removes them if
// already present. Emptied sets drop their key.
func toggleReaction(m *models.Message, emoji, userID string) {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	users := m.Reactions[emoji]
	for i, u := range users {
		if u == userID {
			users = append(users[:i], users[i+1:]...)
			if len(users) == 0 {
				delete(m.Reactions, emoji)
			} else {
				m.Reactions[emoji] = users
			}
			return
		}
	}
	m.Reactions[emoji] = append(users, userID)
}

func (s *Server) listActivityModerators(w http.ResponseWriter, r *http.Request) {
	activityID := mux.Vars(r)["activityID"]
	mods, err := s.store.listModerators(activityID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, mods)
}

// putActivityModerators seeds an activity's roster. Real deployments manage
// roles elsewhere; the stub accepts them directly so tests can set up state.
func (s *Server) putActivityModerators(w http.ResponseWriter, r *http.Request) {
	activityID := mux.Vars(r)["activityID"]
	var mods []models.Moderator
	if err := json.NewDecoder(r.Body).Decode(&mods); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := s.store.saveModerators(activityID, mods); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, mods)
}
