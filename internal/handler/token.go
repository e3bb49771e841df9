package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/salesvoice/internal/token"
)

// GetToken mints an access token for a new voice session participant.
func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	issued, err := h.tokens.Issue()
	if err != nil {
		if errors.Is(err, token.ErrMissingCredentials) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		logger(r).Error("Issue token failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	logger(r).Debug("Issued session token",
		zap.String("identity", issued.Identity),
		zap.String("room", issued.Room),
	)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("token")
		e.Str(issued.Token)
		e.FieldStart("livekit_url")
		e.Str(issued.URL)
		e.ObjEnd()
	})
}
