package common

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ErrorBody is the "error" member of every failed quote API response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Envelope wraps successful quote API payloads. Pagination is set on list
// responses only.
type Envelope struct {
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// JSON writes v as the response body.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONData writes data inside the success envelope.
func JSONData(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Data: data})
}

// JSONPage writes one page of a list with its pagination metadata and the
// X-Total-Count header.
func JSONPage(w http.ResponseWriter, data any, p Pagination) {
	w.Header().Set("X-Total-Count", strconv.Itoa(p.TotalItems))
	JSON(w, http.StatusOK, Envelope{Data: data, Pagination: &p})
}

// JSONError writes an error envelope.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, map[string]ErrorBody{
		"error": {Code: code, Message: message, Details: details},
	})
}
