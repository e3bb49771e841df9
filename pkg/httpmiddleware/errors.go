package httpmiddleware

import (
	"net/http"

	"github.com/go-faster/jx"
)

// writeDetail replies with {"detail": msg}, the API's error shape.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("detail")
	e.Str(msg)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
