package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/example/spellvox/internal/spelling"
	"github.com/example/spellvox/internal/store"
	"github.com/example/spellvox/internal/wordgen"
	"github.com/example/spellvox/pkg/provider/stt"
	"github.com/example/spellvox/pkg/provider/tts"
)

const (
	maxHistoryAttempts = 100
	maxHistorySessions = 20

	// maxUploadBytes bounds the multipart audio upload. Browser clips of a
	// spoken spelling run a few hundred KB; anything near this limit is
	// not a legitimate recording.
	maxUploadBytes = 15 << 20
)

// sttPrompt biases the recognizer toward letter names, which are easy to
// mishear as ordinary words ("bee" vs "be").
const sttPrompt = "The user is spelling a word phonetically using letter names like 'ay', 'bee', 'see', etc."

// errorBody is the JSON error envelope. Code carries a machine-readable
// discriminator for errors the client handles specially.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// userIDOr returns id, or the default single-user id when empty.
func userIDOr(id string) string {
	if id == "" {
		return store.DefaultUserID
	}
	return id
}

// ─── Check spelling ───────────────────────────────────────────────────────────

type checkSpellingRequest struct {
	Word         string `json:"word"`
	UserSpelling string `json:"userSpelling"`
}

func (s *Server) handleCheckSpelling(w http.ResponseWriter, r *http.Request) {
	var req checkSpellingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Word == "" || req.UserSpelling == "" {
		writeError(w, http.StatusBadRequest, "word and userSpelling are required")
		return
	}

	result, err := s.cfg.Checker.Check(r.Context(), req.Word, req.UserSpelling)
	if err != nil {
		slog.Error("api: check spelling", "err", err)
		writeError(w, http.StatusBadGateway, "spelling check failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ─── Next words ───────────────────────────────────────────────────────────────

type nextWordsResponse struct {
	Words []store.Word `json:"words"`
}

func (s *Server) handleNextWords(w http.ResponseWriter, r *http.Request) {
	userID := userIDOr(r.URL.Query().Get("user_id"))

	words, err := s.cfg.Selector.NextWords(r.Context(), userID)
	if err != nil {
		slog.Error("api: next words", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to select words")
		return
	}
	writeJSON(w, http.StatusOK, nextWordsResponse{Words: words})
}

// ─── Save attempt ─────────────────────────────────────────────────────────────

type saveAttemptRequest struct {
	UserID          string `json:"userId"`
	SessionID       string `json:"sessionId"`
	WordID          string `json:"wordId"`
	UserSpelling    string `json:"userSpelling"`
	IsCorrect       bool   `json:"isCorrect"`
	Feedback        string `json:"feedback"`
	AudioDurationMs int    `json:"audioDurationMs"`
}

type saveAttemptResponse struct {
	SessionID string `json:"sessionId"`
	AttemptID string `json:"attemptId"`
}

func (s *Server) handleSaveAttempt(w http.ResponseWriter, r *http.Request) {
	var req saveAttemptRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.WordID == "" {
		writeError(w, http.StatusBadRequest, "wordId is required")
		return
	}

	ctx := r.Context()
	userID := userIDOr(req.UserID)
	if err := s.cfg.Store.EnsureUser(ctx, userID); err != nil {
		slog.Error("api: ensure user", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to record attempt")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		var err error
		sessionID, err = s.cfg.Store.CreateSession(ctx, userID, "", "")
		if err != nil {
			slog.Error("api: create session", "user_id", userID, "err", err)
			writeError(w, http.StatusInternalServerError, "failed to record attempt")
			return
		}
	}

	attemptID, err := s.cfg.Store.SaveAttempt(ctx, store.Attempt{
		SessionID:       sessionID,
		UserID:          userID,
		WordID:          req.WordID,
		UserSpelling:    req.UserSpelling,
		IsCorrect:       req.IsCorrect,
		Feedback:        req.Feedback,
		AudioDurationMs: req.AudioDurationMs,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown word id")
			return
		}
		slog.Error("api: save attempt", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to record attempt")
		return
	}
	s.metrics.RecordAttempt(ctx, req.IsCorrect)

	if s.cfg.Adjuster != nil {
		if _, err := s.cfg.Adjuster.AfterAttempt(ctx, userID, sessionID); err != nil {
			// The attempt is already saved; a failed adjustment only delays
			// the difficulty change until the next one.
			slog.Warn("api: difficulty adjustment", "user_id", userID, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, saveAttemptResponse{
		SessionID: sessionID,
		AttemptID: attemptID,
	})
}

// ─── History ──────────────────────────────────────────────────────────────────

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := userIDOr(r.URL.Query().Get("user_id"))

	hist, err := s.cfg.Store.History(r.Context(), userID, maxHistoryAttempts, maxHistorySessions)
	if err != nil {
		slog.Error("api: history", "user_id", userID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// ─── Speech to text ───────────────────────────────────────────────────────────

type speechToTextResponse struct {
	Text        string `json:"text"`
	SpelledWord string `json:"spelledWord"`
}

func (s *Server) handleSpeechToText(w http.ResponseWriter, r *http.Request) {
	if s.cfg.STT == nil {
		writeError(w, http.StatusServiceUnavailable, "speech-to-text is not configured")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read audio")
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "audio file is empty")
		return
	}

	prompt := sttPrompt
	if target := r.FormValue("target_word"); target != "" {
		prompt += fmt.Sprintf(" The word being spelled is %q.", target)
	}

	text, err := s.cfg.STT.Transcribe(r.Context(), stt.Request{
		Audio:       audio,
		ContentType: header.Header.Get("Content-Type"),
		Prompt:      prompt,
	})
	if err != nil {
		slog.Error("api: transcribe", "err", err)
		writeError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	spelled, err := spelling.Decode(text)
	if err != nil {
		s.metrics.DecodeFailures.Add(r.Context(), 1)
		writeErrorCode(w, http.StatusUnprocessableEntity, "could_not_understand",
			"no letter names recognized in the recording")
		return
	}
	writeJSON(w, http.StatusOK, speechToTextResponse{Text: text, SpelledWord: spelled})
}

// ─── Text to speech ───────────────────────────────────────────────────────────

type textToSpeechRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

func (s *Server) handleTextToSpeech(w http.ResponseWriter, r *http.Request) {
	if s.cfg.TTS == nil {
		writeError(w, http.StatusServiceUnavailable, "text-to-speech is not configured")
		return
	}

	var req textToSpeechRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	clip, err := s.cfg.TTS.Synthesize(r.Context(), tts.Request{
		Text:  req.Text,
		Voice: req.Voice,
		Speed: req.Speed,
	})
	if err != nil {
		slog.Error("api: synthesize", "err", err)
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
		return
	}

	w.Header().Set("Content-Type", clip.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(clip.Audio); err != nil {
		slog.Warn("api: failed to write audio response", "err", err)
	}
}

// ─── Generate words ───────────────────────────────────────────────────────────

type generateWordsRequest struct {
	UserID       string   `json:"userId"`
	Prompt       string   `json:"prompt"`
	UseHistory   bool     `json:"useHistory"`
	IncludeWords []string `json:"includeWords"`
}

func (s *Server) handleGenerateWords(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Generator == nil {
		writeError(w, http.StatusServiceUnavailable, "word generation is not configured")
		return
	}

	var req generateWordsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.cfg.Generator.Generate(r.Context(), wordgen.Request{
		UserID:       req.UserID,
		Prompt:       req.Prompt,
		UseHistory:   req.UseHistory,
		IncludeWords: req.IncludeWords,
	})
	if err != nil {
		slog.Error("api: generate words", "err", err)
		writeError(w, http.StatusBadGateway, "word generation failed")
		return
	}
	s.metrics.WordsGenerated.Add(r.Context(), int64(len(res.Words)))

	writeJSON(w, http.StatusOK, res)
}
