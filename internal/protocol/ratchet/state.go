package ratchet

import (
	"paircrypt/internal/crypto"
	"paircrypt/internal/domain"
	"paircrypt/internal/util/memzero"
)

// phase is either awaitingPeer or *active.
type phase interface {
	isPhase()
}

// awaitingPeer is a receiver that has not yet seen the peer's ratchet key.
type awaitingPeer struct{}

// active holds the chains of an established ratchet. A sending chain can only
// exist alongside a known peer key.
type active struct {
	peer        domain.X25519Public
	send        *chain
	recv        *chain
	prevSendLen uint32
}

func (awaitingPeer) isPhase() {}
func (*active) isPhase()      {}

// state is everything a Ratchet mutates. Operations run on a clone and the
// clone replaces the committed state only when the operation succeeds.
type state struct {
	root    [crypto.KeySize]byte
	priv    domain.X25519Private
	pub     domain.X25519Public
	phase   phase
	skipped *skippedKeys
}

func (s *state) clone() *state {
	cp := *s
	if a, ok := s.phase.(*active); ok {
		ac := *a
		ac.send = a.send.clone()
		ac.recv = a.recv.clone()
		cp.phase = &ac
	}
	cp.skipped = s.skipped.clone()
	return &cp
}

func (s *state) wipe() {
	memzero.Zero32(&s.root)
	memzero.Zero(s.priv[:])
	if a, ok := s.phase.(*active); ok {
		a.send.wipe()
		a.recv.wipe()
	}
	s.skipped.wipe()
}

// sendChain returns the sending chain, deriving it from DH(own, peer) when
// the previous one was cleared by a receive step.
func (s *state) sendChain() (*active, error) {
	a, ok := s.phase.(*active)
	if !ok {
		return nil, ErrAwaitingPeer
	}
	if a.send != nil {
		return a, nil
	}
	dh, err := crypto.DH(s.priv, a.peer)
	if err != nil {
		return nil, err
	}
	s.root, a.send = rootStep(s.root, dh)
	return a, nil
}

// receiveStep performs the receiving half of a DH ratchet step for a new
// peer ratchet key: a new root and receiving chain from DH(own, newPeer),
// then a fresh own key pair and a cleared sending chain.
func (s *state) receiveStep(newPeer domain.X25519Public) error {
	var prevSendLen uint32
	if a, ok := s.phase.(*active); ok {
		prevSendLen = a.prevSendLen
		if a.send != nil {
			prevSendLen = a.send.n
		}
		a.send.wipe()
		a.recv.wipe()
	}
	dh, err := crypto.DH(s.priv, newPeer)
	if err != nil {
		return err
	}
	root, recv := rootStep(s.root, dh)
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		recv.wipe()
		return err
	}
	memzero.Zero(s.priv[:])
	s.root = root
	s.priv, s.pub = priv, pub
	s.phase = &active{peer: newPeer, recv: recv, prevSendLen: prevSendLen}
	return nil
}

// skipTo caches message keys of c up to, but not including, until. The
// epoch may hold at most maxSkip cached keys; otherwise nothing is derived.
func (s *state) skipTo(epoch domain.X25519Public, c *chain, until uint32, maxSkip int) error {
	if c == nil || until <= c.n {
		return nil
	}
	gap := uint64(until - c.n)
	if uint64(s.skipped.count(epoch))+gap > uint64(maxSkip) {
		return domain.ErrTooManySkippedMessages
	}
	for c.n < until {
		idx := c.n
		s.skipped.put(skippedKey{ratchetKey: epoch, index: idx}, c.step())
	}
	return nil
}
