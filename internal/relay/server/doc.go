// Package server implements the paircrypt store-and-forward relay.
//
// HTTP API
//
//	POST /bundle
//	    Store a device's PreKeyBundle, replacing any earlier one.
//
//	GET /bundle/{device}
//	    Return the bundle with at most one one-time pre-key. That key is
//	    removed from the stored bundle so no two initiators receive it.
//
//	POST /msg/{device}
//	    Enqueue an Envelope for {device}. The relay assigns its ID and, if
//	    unset, its timestamp.
//
//	GET /msg/{device}?limit=N
//	    Return up to N queued envelopes, oldest first.
//
//	POST /msg/{device}/ack { "through": ID }
//	    Drop the queued envelopes up to and including envelope ID. An ID
//	    no longer queued drops nothing.
//
//	GET /health, GET /metrics
//
// Envelopes and bundles live in a bbolt spool. Envelopes older than the
// retention window are purged, and each device queue is bounded.
//
// The relay only ever handles public bundles and ciphertext.
package server
