package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/salesvoice/internal/domain/product"
)

// ListProducts returns the whole catalog with current stock.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		logger(r).Error("List products failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "product catalog unavailable")
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		product.EncodeProducts(e, products)
	})
}
