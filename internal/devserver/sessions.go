package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"chatkit/pkg/client"
	"chatkit/pkg/logger"
	"chatkit/pkg/models"
	"chatkit/pkg/utils"
)

// registerSessions wires the advisor session and chat routes.
func (s *Server) registerSessions(r *mux.Router) {
	r.HandleFunc("/ai/sessions", s.createSession).Methods(http.MethodPost)
	r.HandleFunc("/ai/sessions/{userID}", s.listSessions).Methods(http.MethodGet)
	r.HandleFunc("/ai/sessions/{id}", s.updateSession).Methods(http.MethodPut)
	r.HandleFunc("/ai/sessions/{id}", s.deleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/ai/chat", s.aiChat).Methods(http.MethodPost)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
		models.ChatSession
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.UserID == "" {
		utils.JSONError(w, http.StatusBadRequest, "userId is required")
		return
	}
	sess := body.ChatSession
	if sess.ID == "" {
		sess.ID = utils.GenSessionID()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	sess.UpdatedAt = time.Now().UTC()
	if err := s.store.saveSession(body.UserID, sess); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("session_created", "user", body.UserID, "id", sess.ID)
	_ = utils.JSONWrite(w, http.StatusCreated, sess)
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	sessions, err := s.store.listSessions(userID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// newest first, matching what clients render
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	_ = utils.JSONWrite(w, http.StatusOK, sessions)
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	existing, err := s.store.getSession(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "session not found")
		return
	}
	var sess models.ChatSession
	if err := json.NewDecoder(r.Body).Decode(&sess); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	sess.ID = id
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = existing.CreatedAt
	}
	sess.UpdatedAt = time.Now().UTC()
	if err := s.store.saveSession(existing.UserID, sess); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.store.getSession(id); err != nil {
		utils.JSONError(w, http.StatusNotFound, "session not found")
		return
	}
	if err := s.store.deleteSession(id); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("session_deleted", "id", id)
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// aiChat is a canned advisor. It echoes the last user turn back so client
// round-trips are observable without a model behind the endpoint.
func (s *Server) aiChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Messages []client.AIMessage `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	last := ""
	for i := len(body.Messages) - 1; i >= 0; i-- {
		if body.Messages[i].Role == client.AIRoleUser {
			last = body.Messages[i].Content
			break
		}
	}
	reply := "Hello! How can I help you today?"
	if strings.TrimSpace(last) != "" {
		reply = fmt.Sprintf("You asked: %q. This is a stub advisor; connect a real backend for answers.", last)
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"response": reply})
}
