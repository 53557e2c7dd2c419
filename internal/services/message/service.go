package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gopkg.in/op/go-logging.v1"

	"paircrypt/internal/domain"
	"paircrypt/internal/log"
	"paircrypt/internal/services/identity"
	"paircrypt/internal/services/session"
)

// Service moves ratchet messages between the session directory and the
// relay.
type Service struct {
	self    domain.DeviceID
	dir     *session.Directory
	relay   domain.RelayClient
	prekeys domain.PreKeyService
	log     *logging.Logger

	// oneTimeTarget is the pool size restored after handshakes consume
	// one-time pre-keys. Zero disables replenishing.
	oneTimeTarget int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithReplenish makes ReceiveMessages top the one-time pre-key pool back up
// to target through ps, and republish the bundle, after accepting a
// handshake.
func WithReplenish(ps domain.PreKeyService, target int) Option {
	return func(s *Service) {
		s.prekeys = ps
		s.oneTimeTarget = target
	}
}

// New returns a Service for device self.
func New(self domain.DeviceID, dir *session.Directory, relay domain.RelayClient, opts ...Option) *Service {
	s := &Service{self: self, dir: dir, relay: relay}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = log.NewDiscard().GetLogger("message")
	}
	return s
}

// Register publishes this device's pre-key bundle to the relay.
func (s *Service) Register(ctx context.Context) (domain.PreKeyBundle, error) {
	bundle, err := s.dir.PublishBundle(s.self)
	if err != nil {
		return domain.PreKeyBundle{}, err
	}
	if err := s.relay.PublishPreKeyBundle(ctx, bundle); err != nil {
		return domain.PreKeyBundle{}, fmt.Errorf("publish bundle: %w", err)
	}
	s.log.Noticef("published bundle for %s with %d one-time pre-keys", s.self, len(bundle.OneTimePreKeys))
	return bundle, nil
}

// StartSession fetches peer's bundle and runs the handshake against it,
// replacing any existing session. It returns the fingerprint of the peer's
// identity key for out-of-band comparison.
func (s *Service) StartSession(ctx context.Context, peer domain.DeviceID) (domain.Fingerprint, error) {
	bundle, err := s.relay.FetchPreKeyBundle(ctx, peer)
	if err != nil {
		return "", fmt.Errorf("fetch bundle for %s: %w", peer, err)
	}
	if _, err := s.dir.Establish(peer, bundle); err != nil {
		return "", err
	}
	return identity.Fingerprint(bundle.IdentityKey), nil
}

// SendMessage encrypts plaintext for to and queues it at the relay. Until
// the peer replies, the handshake rides along with every message.
func (s *Service) SendMessage(ctx context.Context, to domain.DeviceID, plaintext []byte) error {
	msg, err := s.dir.Encrypt(to, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt for %s: %w", to, err)
	}
	hs, _ := s.dir.Handshake(to)
	env := domain.Envelope{
		From:      s.self,
		To:        to,
		Message:   msg,
		Handshake: hs,
		Timestamp: time.Now().Unix(),
	}
	if err := s.relay.SendEnvelope(ctx, env); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}

// ReceiveMessages fetches up to limit queued envelopes, oldest first, and
// decrypts them. Envelopes that can never be decrypted are logged and
// dropped. Processing stops at the first other error; everything handled up
// to that point is acknowledged.
func (s *Service) ReceiveMessages(ctx context.Context, limit int) ([]domain.DecryptedMessage, error) {
	envs, err := s.relay.FetchEnvelopes(ctx, s.self, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch envelopes: %w", err)
	}

	var (
		out       []domain.DecryptedMessage
		processed int
		last      domain.EnvelopeID
		accepted  bool
		stopErr   error
	)
	for _, env := range envs {
		pt, handshake, err := s.open(env)
		switch {
		case err == nil:
			out = append(out, domain.DecryptedMessage{
				From:      env.From,
				Plaintext: pt,
				Timestamp: env.Timestamp,
			})
			accepted = accepted || handshake
		case permanent(err):
			s.log.Warningf("dropping envelope %s from %s: %v", env.ID, env.From, err)
		default:
			stopErr = fmt.Errorf("envelope %s from %s: %w", env.ID, env.From, err)
		}
		if stopErr != nil {
			break
		}
		processed++
		last = env.ID
	}

	if processed > 0 {
		if err := s.relay.AckEnvelopes(ctx, s.self, last); err != nil {
			return out, fmt.Errorf("ack %d envelopes: %w", processed, err)
		}
	}
	if accepted {
		if err := s.replenish(ctx); err != nil {
			s.log.Errorf("replenish one-time pre-keys: %v", err)
		}
	}
	return out, stopErr
}

// open routes env to Accept when it carries a handshake and to Decrypt
// otherwise. handshake reports whether a new session was accepted.
func (s *Service) open(env domain.Envelope) (pt []byte, handshake bool, err error) {
	if env.Handshake == nil {
		pt, err = s.dir.Decrypt(env.From, env.Message)
		return pt, false, err
	}
	fresh := !s.dir.Has(env.From)
	pt, err = s.dir.Accept(env.From, *env.Handshake, env.Message)
	if err != nil {
		return nil, false, err
	}
	return pt, fresh || env.Handshake.OneTimePreKeyID != "", nil
}

func (s *Service) replenish(ctx context.Context) error {
	if s.prekeys == nil || s.oneTimeTarget <= 0 {
		return nil
	}
	n, err := s.prekeys.ReplenishOneTimePreKeys(s.oneTimeTarget)
	if err != nil || n == 0 {
		return err
	}
	s.log.Infof("added %d one-time pre-keys", n)
	_, err = s.Register(ctx)
	return err
}

// permanent reports whether err means the envelope can never be decrypted,
// so retrying it is pointless.
func permanent(err error) bool {
	for _, target := range []error{
		domain.ErrAuthenticationFailed,
		domain.ErrTooManySkippedMessages,
		domain.ErrHandshakeFailed,
		domain.ErrNoSession,
		domain.ErrInvalidKey,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var _ domain.MessageService = (*Service)(nil)
