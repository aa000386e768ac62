package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/example/spellvox/internal/selector"
	"github.com/example/spellvox/internal/spelling"
	"github.com/example/spellvox/internal/store"
	"github.com/example/spellvox/internal/wordgen"
	llmmock "github.com/example/spellvox/pkg/provider/llm/mock"
	sttmock "github.com/example/spellvox/pkg/provider/stt/mock"
	"github.com/example/spellvox/pkg/provider/tts"
	ttsmock "github.com/example/spellvox/pkg/provider/tts/mock"
)

// newTestServer builds a Server on a fresh MemStore. mutate, when non-nil,
// adjusts the config before construction.
func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *store.MemStore) {
	t.Helper()

	m := store.NewMemStore()
	sel, err := selector.New(m, selector.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	adj, err := selector.NewAdjuster(m, selector.DefaultAdjustParams())
	if err != nil {
		t.Fatal(err)
	}

	cfg := Config{
		Store:    m,
		Checker:  spelling.RuleChecker{},
		Selector: sel,
		Adjuster: adj,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return srv, m
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func seedWord(t *testing.T, m *store.MemStore, word string, difficulty int) store.Word {
	t.Helper()
	w, err := m.UpsertWord(context.Background(), store.Word{
		Word:            word,
		Difficulty:      difficulty,
		ContextSentence: "The " + word + " sentence.",
	})
	if err != nil {
		t.Fatal(err)
	}
	return *w
}

// ─── Check spelling ───────────────────────────────────────────────────────────

func TestCheckSpelling(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := postJSON(t, h, "/api/check-spelling", checkSpellingRequest{
		Word:         "colour",
		UserSpelling: "colour",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	res := decodeResponse[spelling.Result](t, rec)
	if !res.IsCorrect {
		t.Errorf("IsCorrect = false, want true: %+v", res)
	}
	if res.UserSpelling != "colour" {
		t.Errorf("UserSpelling = %q, want %q", res.UserSpelling, "colour")
	}
}

func TestCheckSpellingIncorrect(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := postJSON(t, h, "/api/check-spelling", checkSpellingRequest{
		Word:         "colour",
		UserSpelling: "color",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	res := decodeResponse[spelling.Result](t, rec)
	if res.IsCorrect {
		t.Errorf("IsCorrect = true, want false: %+v", res)
	}
	if !strings.Contains(res.Feedback, `The correct spelling is "colour".`) {
		t.Errorf("feedback %q does not restate the correct spelling", res.Feedback)
	}
}

func TestCheckSpellingMissingFields(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := postJSON(t, h, "/api/check-spelling", checkSpellingRequest{Word: "big"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// ─── Next words ───────────────────────────────────────────────────────────────

func TestNextWords(t *testing.T) {
	t.Parallel()
	srv, m := newTestServer(t, nil)
	for _, w := range []string{"colour", "theatre", "rhythm", "necessary"} {
		seedWord(t, m, w, 5)
	}
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/next-words", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	res := decodeResponse[nextWordsResponse](t, rec)
	if len(res.Words) == 0 || len(res.Words) > 10 {
		t.Fatalf("got %d words, want 1..10", len(res.Words))
	}
	for _, w := range res.Words {
		if w.ID == "" || w.Word == "" {
			t.Errorf("word missing id or text: %+v", w)
		}
	}
}

// ─── Save attempt ─────────────────────────────────────────────────────────────

func TestSaveAttemptCreatesSession(t *testing.T) {
	t.Parallel()
	srv, m := newTestServer(t, nil)
	word := seedWord(t, m, "colour", 5)
	h := srv.Handler()

	rec := postJSON(t, h, "/api/save-attempt", saveAttemptRequest{
		WordID:       word.ID,
		UserSpelling: "color",
		IsCorrect:    false,
		Feedback:     "Close, but this is the British spelling.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	res := decodeResponse[saveAttemptResponse](t, rec)
	if res.SessionID == "" || res.AttemptID == "" {
		t.Fatalf("missing ids in response: %+v", res)
	}

	attempts, err := m.RecentAttempts(context.Background(), store.DefaultUserID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 {
		t.Fatalf("got %d stored attempts, want 1", len(attempts))
	}
	if attempts[0].SessionID != res.SessionID {
		t.Errorf("attempt session = %q, want %q", attempts[0].SessionID, res.SessionID)
	}
}

func TestSaveAttemptReusesSession(t *testing.T) {
	t.Parallel()
	srv, m := newTestServer(t, nil)
	word := seedWord(t, m, "colour", 5)
	h := srv.Handler()

	first := decodeResponse[saveAttemptResponse](t, postJSON(t, h, "/api/save-attempt", saveAttemptRequest{
		WordID: word.ID, UserSpelling: "colour", IsCorrect: true,
	}))
	second := decodeResponse[saveAttemptResponse](t, postJSON(t, h, "/api/save-attempt", saveAttemptRequest{
		SessionID: first.SessionID,
		WordID:    word.ID, UserSpelling: "colour", IsCorrect: true,
	}))
	if second.SessionID != first.SessionID {
		t.Errorf("session = %q, want reused %q", second.SessionID, first.SessionID)
	}
}

func TestSaveAttemptUnknownWord(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := postJSON(t, h, "/api/save-attempt", saveAttemptRequest{
		WordID: "no-such-word", UserSpelling: "x",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body)
	}
}

func TestSaveAttemptMissingWordID(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := postJSON(t, h, "/api/save-attempt", saveAttemptRequest{UserSpelling: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

// ─── History ──────────────────────────────────────────────────────────────────

func TestHistory(t *testing.T) {
	t.Parallel()
	srv, m := newTestServer(t, nil)
	word := seedWord(t, m, "colour", 5)
	h := srv.Handler()

	postJSON(t, h, "/api/save-attempt", saveAttemptRequest{
		WordID: word.ID, UserSpelling: "colour", IsCorrect: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	hist := decodeResponse[store.History](t, rec)
	if len(hist.Attempts) != 1 {
		t.Fatalf("got %d attempts, want 1", len(hist.Attempts))
	}
	if hist.Attempts[0].Word != "colour" {
		t.Errorf("attempt word = %q, want joined word text", hist.Attempts[0].Word)
	}
	if len(hist.Sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(hist.Sessions))
	}
}

// ─── Speech to text ───────────────────────────────────────────────────────────

func multipartAudio(t *testing.T, audio []byte, targetWord string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", "clip.webm")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(audio); err != nil {
		t.Fatal(err)
	}
	if targetWord != "" {
		if err := mw.WriteField("target_word", targetWord); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestSpeechToText(t *testing.T) {
	t.Parallel()
	sttp := &sttmock.Provider{Transcript: "bee eye gee"}
	srv, _ := newTestServer(t, func(c *Config) { c.STT = sttp })
	h := srv.Handler()

	body, contentType := multipartAudio(t, []byte("clip"), "big")
	req := httptest.NewRequest(http.MethodPost, "/api/speech-to-text", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	res := decodeResponse[speechToTextResponse](t, rec)
	if res.Text != "bee eye gee" || res.SpelledWord != "big" {
		t.Errorf("response = %+v, want transcript and decoded word", res)
	}
	if sttp.CallCount() != 1 {
		t.Fatalf("provider called %d times, want 1", sttp.CallCount())
	}
	if prompt := sttp.Calls[0].Req.Prompt; !strings.Contains(prompt, `"big"`) {
		t.Errorf("prompt %q does not mention the target word", prompt)
	}
}

func TestSpeechToTextNoLetters(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, func(c *Config) {
		c.STT = &sttmock.Provider{Transcript: "ummm"}
	})
	h := srv.Handler()

	body, contentType := multipartAudio(t, []byte("clip"), "")
	req := httptest.NewRequest(http.MethodPost, "/api/speech-to-text", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", rec.Code, rec.Body)
	}
	if body := decodeResponse[errorBody](t, rec); body.Code != "could_not_understand" {
		t.Errorf("code = %q, want could_not_understand", body.Code)
	}
}

func TestSpeechToTextMissingAudio(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, func(c *Config) { c.STT = &sttmock.Provider{} })
	h := srv.Handler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/speech-to-text", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSpeechToTextUnconfigured(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	body, contentType := multipartAudio(t, []byte("clip"), "")
	req := httptest.NewRequest(http.MethodPost, "/api/speech-to-text", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSpeechToTextProviderFailure(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, func(c *Config) {
		c.STT = &sttmock.Provider{Err: errors.New("upstream down")}
	})
	h := srv.Handler()

	body, contentType := multipartAudio(t, []byte("clip"), "")
	req := httptest.NewRequest(http.MethodPost, "/api/speech-to-text", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

// ─── Text to speech ───────────────────────────────────────────────────────────

func TestTextToSpeech(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, func(c *Config) {
		c.TTS = &ttsmock.Provider{Clip: &tts.Clip{Audio: []byte("mp3"), ContentType: "audio/mpeg"}}
	})
	h := srv.Handler()

	rec := postJSON(t, h, "/api/text-to-speech", textToSpeechRequest{Text: "necessary"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("content type = %q, want audio/mpeg", got)
	}
	if rec.Body.String() != "mp3" {
		t.Errorf("body = %q, want raw audio bytes", rec.Body.String())
	}
}

func TestTextToSpeechMissingText(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, func(c *Config) { c.TTS = &ttsmock.Provider{} })
	h := srv.Handler()

	rec := postJSON(t, h, "/api/text-to-speech", textToSpeechRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTextToSpeechUnconfigured(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := postJSON(t, h, "/api/text-to-speech", textToSpeechRequest{Text: "hi"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

// ─── Generate words ───────────────────────────────────────────────────────────

const generateResponse = `{
  "words": [
    {"word": "colour", "difficulty": 4, "contextSentence": "My favourite colour is blue."}
  ]
}`

func TestGenerateWords(t *testing.T) {
	t.Parallel()
	srv, m := newTestServer(t, nil)
	srv.cfg.Generator = wordgen.New(&llmmock.Provider{Content: generateResponse}, m)
	h := srv.Handler()

	rec := postJSON(t, h, "/api/generate-words", generateWordsRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	res := decodeResponse[wordgen.Result](t, rec)
	if len(res.Words) != 1 || res.Words[0].Word != "colour" {
		t.Fatalf("words = %+v, want the generated word", res.Words)
	}
}

func TestGenerateWordsProviderFailure(t *testing.T) {
	t.Parallel()
	srv, m := newTestServer(t, nil)
	srv.cfg.Generator = wordgen.New(&llmmock.Provider{Err: errors.New("quota")}, m)
	h := srv.Handler()

	rec := postJSON(t, h, "/api/generate-words", generateWordsRequest{})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502: %s", rec.Code, rec.Body)
	}
}

func TestGenerateWordsUnconfigured(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	rec := postJSON(t, h, "/api/generate-words", generateWordsRequest{})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

// ─── Routes ───────────────────────────────────────────────────────────────────

func TestHealthAndMetricsRoutes(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)
	h := srv.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}
