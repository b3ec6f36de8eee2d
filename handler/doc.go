// Package handler provides the HTTP handlers of the merchant service.
//
// # Webhooks
//
// WebhookHandler receives gateway notifications on POST /webhooks/baokim.
// The raw body is verified and dispatched by a *baokim.Webhook and the reply
// envelope is always written with HTTP 200:
//
//	wh := baokim.NewWebhook(signer, journal, metrics).
//		OnPayment(markPaid).
//		OnRefund(markRefunded)
//	r.Post("/webhooks/baokim", handler.NewWebhookHandler(wh, cfg.Baokim.VerifyWebhook).Receive)
//
// # Gateway API
//
// OrderHandler, DirectHandler and VAHandler expose the request builders of
// the mastersub, direct and hosttohost packages. Bodies are decoded and
// validated before any gateway call. Gateway envelopes are returned with
// HTTP 200 and their success flag; errors map to statuses by kind:
//
//	validation                 400
//	authentication, transport  502
//	key, sign, config          500
//
// # Operations
//
// HealthHandler reports token state without the token itself and pings the
// journal. EventsHandler lists journaled webhooks and gateway calls.
// AnalyticsHandler reads aggregates from the OpenSearch indices.
package handler
