package httpapi

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/accessally/accessally/internal/history"
	"github.com/accessally/accessally/internal/identity"
)

type saveNotesRequest struct {
	Username     string `json:"username"`
	NotesContent string `json:"notes_content"`
}

type clearRequest struct {
	Username string `json:"username"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleLoadNotes(w http.ResponseWriter, r *http.Request) {
	id, err := identity.Sanitize(r.URL.Query().Get("username"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_username", msgInvalidUsernameProvided)
		return
	}
	log.Info().Str("identity", id.String()).Msg("loading notes")
	respondJSON(w, http.StatusOK, map[string]string{"notes": s.notes.Load(r.Context(), id)})
}

func (s *Server) handleSaveNotes(w http.ResponseWriter, r *http.Request) {
	var req saveNotesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", msgInvalidRequest)
		return
	}
	id, err := identity.Sanitize(req.Username)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_username", msgInvalidUsernameProvided)
		return
	}
	log.Info().Str("identity", id.String()).Msg("saving notes")
	if err := s.notes.Save(r.Context(), id, req.NotesContent); err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "Failed to save notes on server.")
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "success", Message: "Notes saved."})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", msgInvalidRequest)
		return
	}
	id, err := identity.Sanitize(req.Username)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_username", msgInvalidUsernameProvided)
		return
	}
	log.Info().Str("identity", id.String()).Msg("clear request")

	unlock := s.locker.Lock(id)
	defer unlock()

	var cleared []string
	historyExisted, err := s.history.Clear(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("identity", id.String()).Str("op", "history.clear").Msg("failed to clear history")
		respondError(w, http.StatusInternalServerError, "storage_error", "Failed to clear user data on server.")
		return
	}
	if historyExisted {
		cleared = append(cleared, "History")
	}
	notesExisted, err := s.notes.Clear(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("identity", id.String()).Str("op", "notes.clear").Msg("failed to clear notes")
		respondError(w, http.StatusInternalServerError, "storage_error", "Failed to clear user data on server.")
		return
	}
	if notesExisted {
		cleared = append(cleared, "Notes")
	}

	message := "No history or notes file found to clear."
	if len(cleared) > 0 {
		message = strings.Join(cleared, " and ") + " file(s) cleared successfully."
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "success", Message: message})
}

func (s *Server) handleExportChat(w http.ResponseWriter, r *http.Request) {
	id, err := identity.Sanitize(r.URL.Query().Get("username"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_username", msgInvalidUsername)
		return
	}
	turns := s.history.Load(r.Context(), id)
	if len(turns) == 0 {
		log.Warn().Str("identity", id.String()).Msg("no history found to export")
		respondError(w, http.StatusNotFound, "not_found", "No history found for this user to export.")
		return
	}

	now := s.now()
	filename := fmt.Sprintf("AccessAlly_Chat_%s_%s.txt", id, now.Format("20060102_150405"))
	log.Info().Str("identity", id.String()).Str("file", filename).Msg("sending history export")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(renderExport(id, turns, now.Format("2006-01-02 15:04:05"))))
}

// renderExport formats a history as the downloadable plain-text transcript.
func renderExport(id identity.Token, turns []history.Turn, exportedAt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "AccessAlly AI - Chat History\nUser: %s\nExported: %s\n", id, exportedAt)
	b.WriteString(strings.Repeat("=", 40))
	b.WriteString("\n\n")
	for _, t := range turns {
		if t.Timestamp != "" {
			fmt.Fprintf(&b, "[%s] ", t.Timestamp)
		}
		fmt.Fprintf(&b, "%s:\n%s\n\n---\n\n", t.Role.Label(), t.Text)
	}
	return b.String()
}
