package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/authifier/authifier/core/autherr"
)

// WriteError serializes an engine error as the JSON envelope
// {"type":"<Kind>", ...fields} with its mapped HTTP status. Errors from
// outside the union collapse to InternalError.
func WriteError(w http.ResponseWriter, err error) {
	e := autherr.AsError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.Status())
	_ = json.NewEncoder(w).Encode(e)
}
