// Package handler implements the HTTP surface of the assistant: catalog
// listing, session token minting, text chat, and session events.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/salesvoice/internal/domain/product"
	"github.com/xenking/salesvoice/internal/llm"
	"github.com/xenking/salesvoice/internal/token"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Responder answers a conversation.
type Responder interface {
	Respond(ctx context.Context, history []llm.Message) (string, error)
}

// TokenIssuer mints real-time session tokens.
type TokenIssuer interface {
	Issue() (*token.Issued, error)
}

// Handler serves the public HTTP API.
type Handler struct {
	products product.Repository
	agent    Responder
	tokens   TokenIssuer
	events   http.Handler
}

// NewHandler constructs a Handler. events serves the websocket event stream
// and may be nil, in which case /events is not registered.
func NewHandler(products product.Repository, agent Responder, tokens TokenIssuer, events http.Handler) *Handler {
	return &Handler{
		products: products,
		agent:    agent,
		tokens:   tokens,
		events:   events,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /products", h.ListProducts)
	mux.HandleFunc("GET /token", h.GetToken)
	mux.HandleFunc("POST /chat", h.Chat)
	if h.events != nil {
		mux.Handle("GET /events", h.events)
	}
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError replies with {"detail": detail}.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("detail")
		e.Str(detail)
		e.ObjEnd()
	})
}

func logger(r *http.Request) *zap.Logger {
	return zctx.From(r.Context())
}
