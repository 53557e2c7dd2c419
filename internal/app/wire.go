package app

import (
	"errors"

	"paircrypt/internal/domain"
	"paircrypt/internal/services/message"
	"paircrypt/internal/services/session"
	"paircrypt/internal/store"
)

// Wire is the unlocked client: the identity, the session directory over the
// session database and, when a relay is configured, the message service.
type Wire struct {
	Identity  domain.Identity
	Directory *session.Directory
	// Messages is nil without a relay.
	Messages *message.Service

	sessions *store.BoltSessionStore
}

// Unlock loads the identity with passphrase and opens the session database.
// The caller must Close the Wire.
func (a *App) Unlock(passphrase string) (*Wire, error) {
	id, err := a.Identity.LoadIdentity(passphrase)
	if err != nil {
		return nil, err
	}
	sessions, err := store.OpenBoltSessionStore(a.Config.SessionsFile())
	if err != nil {
		return nil, err
	}
	dir := session.NewDirectory(id, a.PreKeyStore,
		session.WithSessionStore(sessions),
		session.WithMaxSkip(a.Config.Session.MaxSkip),
		session.WithLogger(a.Log.GetLogger("session")),
	)
	w := &Wire{Identity: id, Directory: dir, sessions: sessions}
	if a.relay != nil {
		w.Messages = message.New(domain.DeviceID(a.Config.DeviceID), dir, a.relay,
			message.WithLogger(a.Log.GetLogger("message")),
			message.WithReplenish(a.PreKeys, a.Config.Session.OneTimePreKeys),
		)
	}
	a.log.Debugf("unlocked identity for %q", a.Config.DeviceID)
	return w, nil
}

// RequireMessages returns the message service, or ErrNoRelay.
func (w *Wire) RequireMessages() (*message.Service, error) {
	if w.Messages == nil {
		return nil, ErrNoRelay
	}
	return w.Messages, nil
}

// Close closes the session database.
func (w *Wire) Close() error {
	if w.sessions == nil {
		return errors.New("app: wire already closed")
	}
	err := w.sessions.Close()
	w.sessions = nil
	return err
}
