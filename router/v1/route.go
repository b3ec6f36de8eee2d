package v1

import (
	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/gobaokim/handler"
)

// Handlers groups the /v1 handlers. A nil handler leaves its routes
// unregistered.
type Handlers struct {
	Orders    *handler.OrderHandler
	Direct    *handler.DirectHandler
	VA        *handler.VAHandler
	Events    *handler.EventsHandler
	Analytics *handler.AnalyticsHandler
}

// Routes registers all API routes
func Routes(r chi.Router, h Handlers) {
	// Master/sub merchant orders
	if h.Orders != nil {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.Orders.CreateOrder)
			r.Get("/{mrcOrderID}", h.Orders.GetOrder)
			r.Post("/{mrcOrderID}/refund", h.Orders.RefundOrder)
		})
		r.Post("/auto-debit/cancel", h.Orders.CancelAutoDebit)
	}

	// Direct merchant orders
	if h.Direct != nil {
		r.Route("/direct/orders", func(r chi.Router) {
			r.Post("/", h.Direct.CreateOrder)
			r.Get("/{mrcOrderID}", h.Direct.GetOrder)
			r.Post("/{mrcOrderID}/refund", h.Direct.RefundOrder)
			r.Post("/{mrcOrderID}/cancel", h.Direct.CancelOrder)
		})
	}

	// Host-to-host virtual accounts
	if h.VA != nil {
		r.Route("/va", func(r chi.Router) {
			r.Post("/", h.VA.CreateVA)
			r.Post("/transactions", h.VA.QueryTransactions)
			r.Put("/{accNo}", h.VA.UpdateVA)
		})
	}

	// Journal
	if h.Events != nil {
		r.Get("/webhooks/events", h.Events.ListWebhooks)
		r.Get("/calls", h.Events.ListCalls)
		r.Get("/journal/stats", h.Events.GetStats)
	}

	// Indexed log analytics
	if h.Analytics != nil {
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/endpoints", h.Analytics.GetEndpointStats)
			r.Get("/errors", h.Analytics.GetRecentErrors)
			r.Get("/orders/{mrcOrderID}/webhooks", h.Analytics.GetOrderWebhooks)
		})
	}
}
