package root

import (
	"net/http"

	"github.com/go-chi/render"
)

type Welcome struct {
	Message string `json:"message"`
}

// Index: GET /.
func Index() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, Welcome{Message: "Bienvenue sur l'API Portalia"})
	}
}
