package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/accessally/accessally/internal/brain"
	"github.com/accessally/accessally/internal/history"
	"github.com/accessally/accessally/internal/identity"
	"github.com/accessally/accessally/internal/policy"
)

const (
	msgInvalidUsername         = "Invalid username"
	msgInvalidUsernameProvided = "Invalid username provided"
	msgInvalidRequest          = "Invalid request format"

	msgNotUnderstood      = "Sorry, I couldn't understand the audio. Please try speaking clearly."
	recognizedPlaceholder = "[Audio not recognized]"

	maxUploadBytes = 32 << 20
)

type chatRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

type chatResponse struct {
	UserMessage string  `json:"user_message"`
	BotResponse string  `json:"bot_response"`
	AudioURL    *string `json:"audio_url"`
}

type recognizeResponse struct {
	RecognizedText string  `json:"recognized_text"`
	BotResponse    string  `json:"bot_response"`
	AudioURL       *string `json:"audio_url"`
}

type summarizeResponse struct {
	Summary  string  `json:"summary"`
	AudioURL *string `json:"audio_url"`
}

func (s *Server) handleLoadHistory(w http.ResponseWriter, r *http.Request) {
	id, err := identity.Sanitize(r.URL.Query().Get("username"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_username", msgInvalidUsernameProvided)
		return
	}
	log.Info().Str("identity", id.String()).Msg("loading history")
	respondJSON(w, http.StatusOK, map[string]any{"history": s.history.Load(r.Context(), id)})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", msgInvalidRequest)
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "missing_message", "No message received")
		return
	}
	id, err := identity.Sanitize(req.Username)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_username", msgInvalidUsername)
		return
	}
	log.Info().Str("identity", id.String()).Str("message", policy.LogPreview(req.Message)).Msg("chat request")
	s.metrics.ObserveTurn("chat")

	reply, err := s.runTurn(r.Context(), id, req.Message)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "Failed to save conversation history.")
		return
	}
	respondJSON(w, http.StatusOK, chatResponse{
		UserMessage: req.Message,
		BotResponse: reply,
		AudioURL:    optionalURL(s.speech.Synthesize(r.Context(), reply, "")),
	})
}

func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "too_large", "Audio upload too large")
			return
		}
		respondError(w, http.StatusBadRequest, "missing_audio", "No audio file part found")
		return
	}
	form := r.MultipartForm
	defer func() { _ = form.RemoveAll() }()

	// A part sent with an empty filename is parsed as a plain value.
	files := form.File["audio_data"]
	_, blankPart := form.Value["audio_data"]
	if len(files) == 0 && !blankPart {
		respondError(w, http.StatusBadRequest, "missing_audio", "No audio file part found")
		return
	}
	usernames, ok := form.Value["username"]
	if !ok || len(usernames) == 0 {
		respondError(w, http.StatusBadRequest, "missing_username", "Username required in form data")
		return
	}
	if len(files) == 0 || files[0].Filename == "" {
		respondError(w, http.StatusBadRequest, "missing_audio", "No selected file")
		return
	}
	id, err := identity.Sanitize(usernames[0])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_username", msgInvalidUsername)
		return
	}
	log.Info().Str("identity", id.String()).Msg("recognize request")
	s.metrics.ObserveTurn("recognize")

	upload, err := files[0].Open()
	if err != nil {
		log.Error().Err(err).Str("identity", id.String()).Msg("failed to open uploaded audio")
		respondError(w, http.StatusInternalServerError, "internal", "Failed to read uploaded audio.")
		return
	}
	defer upload.Close()

	text, err := s.speech.Transcribe(r.Context(), upload)
	if err != nil {
		// Both unrecognized speech and backend failures get the same apology.
		respondJSON(w, http.StatusOK, recognizeResponse{
			RecognizedText: recognizedPlaceholder,
			BotResponse:    msgNotUnderstood,
			AudioURL:       optionalURL(s.speech.Synthesize(r.Context(), msgNotUnderstood, "")),
		})
		return
	}
	log.Info().Str("identity", id.String()).Str("text", policy.LogPreview(text)).Msg("speech recognized")

	reply, err := s.runTurn(r.Context(), id, text)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "Failed to save conversation history.")
		return
	}
	respondJSON(w, http.StatusOK, recognizeResponse{
		RecognizedText: text,
		BotResponse:    reply,
		AudioURL:       optionalURL(s.speech.Synthesize(r.Context(), reply, "")),
	})
}

// runTurn appends one user/bot exchange to the identity's history. The lock
// covers load through save so concurrent turns are not lost.
func (s *Server) runTurn(ctx context.Context, id identity.Token, message string) (string, error) {
	unlock := s.locker.Lock(id)
	defer unlock()

	turns := s.history.Load(ctx, id)
	turns = append(turns, history.Turn{Role: history.RoleUser, Text: message})
	reply := s.dialogue.Respond(ctx, message)
	turns = append(turns, history.Turn{Role: history.RoleBot, Text: reply})
	if err := s.history.Save(ctx, id, turns); err != nil {
		log.Error().Err(err).Str("identity", id.String()).Str("op", "history.save").Msg("failed to persist turn")
		return "", err
	}
	return reply, nil
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := identity.Sanitize(q.Get("username"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_username", msgInvalidUsername)
		return
	}
	raw := string(brain.SummaryShort)
	if v, ok := q["length"]; ok {
		raw = v[0]
	}
	length, err := brain.ParseSummaryLength(raw)
	if err != nil || raw == "" {
		respondError(w, http.StatusBadRequest, "invalid_length", "Invalid summary length parameter")
		return
	}
	log.Info().Str("identity", id.String()).Str("length", string(length)).Msg("summarize request")
	s.metrics.ObserveTurn("summarize")

	summary := s.dialogue.Summarize(r.Context(), s.history.Load(r.Context(), id), length)
	respondJSON(w, http.StatusOK, summarizeResponse{
		Summary:  summary,
		AudioURL: optionalURL(s.speech.Synthesize(r.Context(), summary, "")),
	})
}
