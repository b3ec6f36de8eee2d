// Package gobaokim is a Go client and merchant-side server for the Baokim B2B
// payment gateway. It signs every outbound request with the merchant's RSA
// key, caches the OAuth bearer token, normalizes gateway replies and verifies
// incoming webhooks with Baokim's public key.
//
// # Overview
//
// Baokim exposes three API families that share one authentication and
// signing scheme:
//
//   - Master/sub orders: a master merchant creates, queries and refunds
//     orders for a sub merchant, and cancels saved auto-debit tokens.
//   - Direct orders: a merchant connected on its own creates, queries,
//     refunds and cancels orders.
//   - Host-to-host virtual accounts: dynamic or static bank accounts that
//     customers pay by transfer.
//
// # Architecture
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│  Merchant Apps  │◄──►│    GoBaokim     │◄──►│     Baokim      │
//	│                 │    │ (sign, token)   │    │   B2B Gateway   │
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// Outbound: caller → builder (validate) → token manager → canonical JSON →
// RSA-SHA256 signature → HTTP POST → normalized response.
//
// Inbound: webhook POST → verify signature over raw body → classify
// operation → registered handler → {code, message} reply.
//
// # Quick Start
//
//	signer, err := baokim.NewSigner("keys/merchant_private.pem", "keys/baokim_public.pem")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	transport := baokim.NewHTTPTransport(baokim.CreateHTTPClientConfig(baokim.SandboxBaseURL, 0, 0))
//	tokens := baokim.NewTokenManager(transport, signer, baokim.Credentials{
//	    Mode:               baokim.AuthModeMasterSub,
//	    MerchantCode:       "MERCHANT",
//	    MasterMerchantCode: "MASTER",
//	    SubMerchantCode:    "SUB",
//	    ClientID:           "client-id",
//	    ClientSecret:       "client-secret",
//	})
//	client := baokim.NewClient(transport, tokens, signer)
//
//	orders := mastersub.New(client, mastersub.Options{
//	    MasterMerchantCode: "MASTER",
//	    SubMerchantCode:    "SUB",
//	    URLSuccess:         "https://shop.example/success",
//	    URLFail:            "https://shop.example/fail",
//	})
//
//	resp, err := orders.CreateOrder(ctx, mastersub.OrderRequest{
//	    MrcOrderID:  "ORDER-1001",
//	    TotalAmount: 150000,
//	    Description: "Order 1001",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if resp.Success {
//	    fmt.Println(resp.DataString("payment_url"))
//	}
//
// # Webhooks
//
//	wh := baokim.NewWebhook(signer).
//	    OnPayment(func(ctx context.Context, data, payload map[string]any) (*baokim.WebhookReply, error) {
//	        // mark the order paid
//	        return nil, nil
//	    })
//	http.Handle("/webhooks/baokim", wh)
//
// The receiver always answers HTTP 200 with a JSON {code, message} body.
// Code 0 acknowledges the notification; any other code asks Baokim to retry.
//
// # HTTP Server
//
// cmd/server runs a merchant-side service exposing the webhook receiver, a
// small order and VA API under /v1, /health and Prometheus /metrics.
// Gateway calls and webhook deliveries are journaled to SQLite and indexed
// in OpenSearch when enabled.
//
// # Configuration
//
//	BAOKIM_BASE_URL=https://devtest.baokim.vn
//	BAOKIM_AUTH_MODE=master_sub
//	BAOKIM_MERCHANT_CODE=MERCHANT
//	BAOKIM_MASTER_MERCHANT_CODE=MASTER
//	BAOKIM_SUB_MERCHANT_CODE=SUB
//	BAOKIM_CLIENT_ID=client-id
//	BAOKIM_CLIENT_SECRET=client-secret
//	BAOKIM_PRIVATE_KEY_PATH=keys/merchant_private.pem
//	BAOKIM_PUBLIC_KEY_PATH=keys/baokim_public.pem
//
// # Keys
//
// cmd/keygen writes a new merchant key pair. Send the public key to Baokim
// and keep the private key readable only by the service user.
//
// For more information, visit: https://github.com/mstgnz/gobaokim
package gobaokim
