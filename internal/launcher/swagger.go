//go:build swagger

package launcher

import (
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "studioforge/internal/launcher/docs"
)

// MountSwagger serves the generated OpenAPI document and its UI.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}
