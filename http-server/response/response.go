// Package response renders API errors as {"error": code, "message": text}.
package response

import (
	"net/http"

	"github.com/go-chi/render"

	"portalia/internal/service/convert"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Error maps err to its stable code and HTTP status.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	Fail(w, r, convert.Status(err), convert.Code(err), err.Error())
}

func Fail(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: code, Message: message})
}
