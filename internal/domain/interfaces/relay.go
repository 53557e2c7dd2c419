package interfaces

import (
	"context"

	domaintypes "paircrypt/internal/domain/types"
)

// RelayClient is how we talk to the store-and-forward relay, all with context.
type RelayClient interface {
	PublishPreKeyBundle(ctx context.Context, bundle domaintypes.PreKeyBundle) error
	FetchPreKeyBundle(
		ctx context.Context,
		device domaintypes.DeviceID,
	) (domaintypes.PreKeyBundle, error)

	SendEnvelope(ctx context.Context, envelope domaintypes.Envelope) error
	FetchEnvelopes(
		ctx context.Context,
		device domaintypes.DeviceID,
		limit int,
	) ([]domaintypes.Envelope, error)
	// AckEnvelopes drops device's queued envelopes up to and including
	// through, which must be an ID returned by FetchEnvelopes.
	AckEnvelopes(ctx context.Context, device domaintypes.DeviceID, through domaintypes.EnvelopeID) error
}
