package response

import (
	"encoding/json"
	"net/http"
)

// JSON writes data as the response body. Account responses carry bearer
// tokens and one-time passwords, so none of them may be cached.
func JSON(w http.ResponseWriter, status int, data any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
