// Package baokim is the core of the Baokim B2B client: RSA request signing,
// the OAuth token cache, the signed request pipeline shared by every API
// family, response normalization and the webhook receiver.
//
// The order and virtual account APIs live in subpackages:
//
//   - mastersub: orders placed by a master merchant for a sub merchant
//   - direct: orders placed by a merchant connected on its own
//   - hosttohost: virtual accounts paid by bank transfer
//
// Every request body is serialized once, signed over those exact bytes and
// sent unchanged. Incoming webhooks are verified over the raw body before
// any parsing.
package baokim
