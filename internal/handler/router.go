package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	custommiddleware "github.com/mkazantsev/invoicer-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса счетов.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", h.GetClients)
				r.Post("/", h.CreateClient)
				r.Get("/{id}", h.GetClient)
				r.Put("/{id}", h.UpdateClient)
				r.Delete("/{id}", h.DeleteClient)
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", h.GetInvoices)
				r.Post("/", h.CreateInvoice)
				r.Get("/{id}", h.GetInvoice)
				r.Put("/{id}", h.UpdateInvoice)
				r.Put("/{id}/status", h.SetInvoiceStatus)
				r.Delete("/{id}", h.DeleteInvoice)
				r.Post("/{id}/payments", h.AddPayment)
				r.Get("/{id}/payments", h.GetPayments)
			})

			r.Get("/dashboard/stats", h.GetDashboardStats)
			r.Get("/dashboard/revenue-chart", h.GetRevenueChart)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
