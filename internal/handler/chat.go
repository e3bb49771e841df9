package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/salesvoice/internal/llm"
)

// Chat runs one text turn of the conversation: {"messages": [...]} in,
// {"response": "..."} out.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	history, err := decodeChatRequest(body)
	if err != nil {
		logger(r).Debug("Invalid chat request", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.agent.Respond(r.Context(), history)
	if err != nil {
		status, detail := modelFailure(r, err)
		writeError(w, status, detail)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("response")
		e.Str(reply)
		e.ObjEnd()
	})
}

// modelFailure maps a failed turn to a response. A rate-limited provider is
// reported as 503 so clients back off; everything else is a bad gateway.
func modelFailure(r *http.Request, err error) (int, string) {
	lg := logger(r)
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.IsRateLimited():
			lg.Warn("Language model rate limited", zap.Error(err))
			return http.StatusServiceUnavailable, "language model is rate limited, try again later"
		case apiErr.IsUnauthorized():
			lg.Error("Language model rejected the API key", zap.Error(err))
			return http.StatusBadGateway, "language model request failed"
		}
	}
	lg.Error("Chat turn failed", zap.Error(err))
	return http.StatusBadGateway, "language model request failed"
}

func decodeChatRequest(body []byte) ([]llm.Message, error) {
	var (
		history []llm.Message
		found   bool
	)
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "messages" {
			return d.Skip()
		}
		found = true
		return d.Arr(func(d *jx.Decoder) error {
			var m llm.Message
			if err := m.Decode(d); err != nil {
				return err
			}
			switch m.Role {
			case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant, llm.RoleTool:
			default:
				return errors.Errorf("message %d: invalid role %q", len(history), m.Role)
			}
			history = append(history, m)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "invalid request body")
	}
	if !found {
		return nil, errors.New("invalid request body: messages is required")
	}
	return history, nil
}
