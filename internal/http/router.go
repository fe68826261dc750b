package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the cart API the storefront UI calls.
func NewRouter(handler *CartHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Metrics)

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(WithSession)

		r.Get("/", handler.GetCart)
		r.Post("/", handler.AddItem)
		r.Delete("/", handler.ClearCart)
		r.Post("/merge", handler.MergeCart)

		// Authenticated lines are addressed by persistence-assigned item
		// ID, guest lines by product ID.
		r.Put("/{itemID}", handler.UpdateQuantity)
		r.Delete("/{itemID}", handler.RemoveItem)
		r.Put("/product/{productID}", handler.UpdateGuestQuantity)
		r.Delete("/product/{productID}", handler.RemoveGuestItem)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
