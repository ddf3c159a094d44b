package responses

import (
	"log/slog"
	"net/http"

	"github.com/adampresley/familybook/pkg/familybook"
	"github.com/goccy/go-json"
)

func WriteJSON(w http.ResponseWriter, status int, value any) {
	b, err := json.Marshal(value)
	if err != nil {
		slog.Error("error encoding response", "error", err)
		http.Error(w, "error encoding response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// WriteResult writes an AppResult using its own status code.
func WriteResult[T any](w http.ResponseWriter, result familybook.AppResult[T]) {
	WriteJSON(w, result.StatusCode, result)
}
