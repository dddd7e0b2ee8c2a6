package api

import (
	"net/http"

	"github.com/go-chi/render"
)

// Response status codes carried in the envelope.
const (
	StatusOK    = 0
	StatusError = 1
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status int         `json:"status"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data,omitempty"`
}

// PaginatedResponse is the envelope of paged listings.
type PaginatedResponse struct {
	Status int         `json:"status"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total"`
	Page   int         `json:"page"`
	Size   int         `json:"size"`
}

func ok(data interface{}) *APIResponse {
	return &APIResponse{Status: StatusOK, Msg: "ok", Data: data}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, &APIResponse{Status: StatusError, Msg: msg})
}
