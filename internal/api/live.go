package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/example/spellvox/internal/spelling"
	"github.com/example/spellvox/pkg/provider/stt"
)

// maxLiveMessageBytes bounds a single websocket message. The audio clip is
// base64-encoded inside the JSON payload, so this is a little over the
// multipart upload limit's order of magnitude for one short recording.
const maxLiveMessageBytes = 4 << 20

// liveMessage is a client → server frame on the live practice stream.
type liveMessage struct {
	Type string `json:"type"`

	// Word is the target word the client is practising.
	Word string `json:"word"`

	// Audio is the base64-encoded recording of the spoken spelling.
	Audio string `json:"audio"`

	// ContentType is the MIME type of the decoded audio.
	ContentType string `json:"contentType"`
}

// liveReply is a server → client frame.
type liveReply struct {
	Type string `json:"type"`

	// Transcript and Spelling are set on "result" frames.
	Transcript string           `json:"transcript,omitempty"`
	Spelling   string           `json:"spelling,omitempty"`
	Result     *spelling.Result `json:"result,omitempty"`

	// Error is set on "error" frames.
	Error string `json:"error,omitempty"`
}

// handleLive runs the websocket practice stream. The client sends one
// "attempt" frame per recording and waits for the reply before sending the
// next; the read loop is sequential, so there is never more than one
// in-flight attempt per connection.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.cfg.STT == nil {
		writeError(w, http.StatusServiceUnavailable, "speech-to-text is not configured")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("api: websocket accept", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")
	conn.SetReadLimit(maxLiveMessageBytes)

	ctx := r.Context()
	s.metrics.ActiveLiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveLiveSessions.Add(context.WithoutCancel(ctx), -1)

	for {
		var msg liveMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				conn.Close(websocket.StatusNormalClosure, "")
			} else if !errors.Is(err, context.Canceled) {
				slog.Debug("api: live read", "err", err)
			}
			return
		}

		var reply liveReply
		switch msg.Type {
		case "attempt":
			reply = s.liveAttempt(ctx, msg)
		default:
			reply = liveReply{Type: "error", Error: fmt.Sprintf("unknown message type %q", msg.Type)}
		}
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			slog.Debug("api: live write", "err", err)
			return
		}
	}
}

// liveAttempt grades one recorded spelling. Anything that prevents grading,
// short of a malformed frame, becomes a "retry" frame: from the user's point
// of view the recording simply wasn't understood.
func (s *Server) liveAttempt(ctx context.Context, msg liveMessage) liveReply {
	if msg.Word == "" {
		return liveReply{Type: "error", Error: "word is required"}
	}
	audio, err := base64.StdEncoding.DecodeString(msg.Audio)
	if err != nil || len(audio) == 0 {
		return liveReply{Type: "error", Error: "audio must be non-empty base64"}
	}

	prompt := sttPrompt + fmt.Sprintf(" The word being spelled is %q.", msg.Word)
	transcript, err := s.cfg.STT.Transcribe(ctx, stt.Request{
		Audio:       audio,
		ContentType: msg.ContentType,
		Prompt:      prompt,
	})
	if err != nil {
		slog.Warn("api: live transcribe", "err", err)
		return liveReply{Type: "retry"}
	}

	spelled, err := spelling.Decode(transcript)
	if err != nil {
		s.metrics.DecodeFailures.Add(ctx, 1)
		return liveReply{Type: "retry"}
	}

	result, err := s.cfg.Checker.Check(ctx, msg.Word, spelled)
	if err != nil {
		slog.Warn("api: live check", "err", err)
		return liveReply{Type: "retry"}
	}
	s.metrics.RecordAttempt(ctx, result.IsCorrect)

	return liveReply{
		Type:       "result",
		Transcript: transcript,
		Spelling:   result.UserSpelling,
		Result:     result,
	}
}
