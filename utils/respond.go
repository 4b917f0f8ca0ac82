package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// WriteJSON encodes v with the given status code. A value that cannot be
// encoded is answered with a 500 instead of a truncated body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		body, status = []byte(`{"message":"Internal server error"}`), http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// WriteMessage writes a {"message": ...} body
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"message": message})
}

// WriteError maps err to a status code and JSON body. Server errors are
// logged with their cause and answered with a generic message.
func WriteError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = &Error{Kind: KindPersistence, Message: "Internal server error", Err: err}
	}
	status := appErr.Status()
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error(appErr.Message, zap.Error(appErr.Err))
	}
	WriteMessage(w, status, appErr.Message)
}
