// Package httpx holds the small JSON request/response helpers shared by every
// handler so the error envelope stays uniform across the API.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorResponse is the uniform error envelope: a stable snake_case code plus
// optional field-level details.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// JSON writes payload with the given status. The payload is marshalled before
// any byte reaches the wire so a marshal failure never leaves partial JSON.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	body := []byte("null")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			http.Error(w, `{"error":"encode_error"}`, http.StatusInternalServerError)
			return
		}
		body = b
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// JSONError writes the error envelope with the given code.
func JSONError(w http.ResponseWriter, status int, code string, details any) {
	JSON(w, status, ErrorResponse{Error: code, Details: details})
}

// ErrBodyTooLarge is returned by DecodeJSON when the request body exceeds the
// limit passed to it.
var ErrBodyTooLarge = errors.New("request body too large")

// DecodeJSON decodes a request body into dst, rejecting bodies over maxBytes
// and unknown fields. Pass maxBytes <= 0 to skip the size cap.
func DecodeJSON(r *http.Request, dst any, maxBytes int64) error {
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(nil, body, maxBytes)
	}
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return ErrBodyTooLarge
		}
		return err
	}
	return nil
}
