package devserver

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"chatkit/pkg/logger"
	"chatkit/pkg/utils"
)

// maxUploadBytes bounds a single stub upload.
const maxUploadBytes = 64 << 20

// registerUploads wires the binary upload route. Bodies are raw bytes with
// X-Upload-Kind and X-Upload-Name headers; the response carries the URL the
// blob is served back from.
func (s *Server) registerUploads(r *mux.Router) {
	r.HandleFunc("/uploads", s.acceptUpload).Methods(http.MethodPost)
}

func (s *Server) acceptUpload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "read body failed")
		return
	}
	if len(data) == 0 {
		utils.JSONError(w, http.StatusBadRequest, "empty upload")
		return
	}
	if len(data) > maxUploadBytes {
		utils.JSONError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}
	id := utils.GenUploadID()
	if err := s.store.saveUpload(id, data); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("upload_stored",
		"id", id,
		"kind", r.Header.Get("X-Upload-Kind"),
		"name", r.Header.Get("X-Upload-Name"),
		"bytes", len(data),
	)
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	_ = utils.JSONWrite(w, http.StatusCreated, map[string]string{
		"url": scheme + "://" + r.Host + "/uploads/" + id,
	})
}

func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	data, err := s.store.getUpload(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "upload not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}
