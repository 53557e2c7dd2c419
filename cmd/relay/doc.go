// Command relay runs the paircrypt store-and-forward relay. It keeps
// published pre-key bundles and queues envelopes for recipients in a bbolt
// spool until they are fetched and acknowledged.
//
// HTTP API
//
//	POST /bundle
//	    Store a device's PreKeyBundle, replacing any earlier one.
//
//	GET /bundle/{device}
//	    Return the bundle with at most one one-time pre-key, which is then
//	    removed from the stored bundle.
//
//	POST /msg/{device}
//	    Enqueue an Envelope for {device}. 507 when the queue is full.
//
//	GET /msg/{device}?limit=N
//	    Return up to N queued Envelopes, oldest first.
//
//	POST /msg/{device}/ack { "through": ID }
//	    Drop the queued envelopes up to and including envelope ID. An ID
//	    no longer queued drops nothing.
//
//	GET /health, GET /metrics
//
// Envelopes older than the retention window are purged periodically. The
// relay only ever sees public bundles and ciphertext.
package main
