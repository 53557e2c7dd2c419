package store

import (
	"encoding/hex"
	"sort"

	"paircrypt/internal/domain"
)

// preKeySet is the pre-key state shared by the file and memory stores.
type preKeySet struct {
	Signed     map[domain.SignedPreKeyID]domain.SignedPreKeyPair   `json:"signed"`
	OneTime    map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair `json:"one_time"`
	Current    domain.SignedPreKeyID                               `json:"current_signed_pre_key_id,omitempty"`
	OneTimeSeq []domain.OneTimePreKeyID                            `json:"one_time_order,omitempty"`
	// Handshakes holds the accepted handshakes per signed pre-key, keyed by
	// hex(initiator identity key || ephemeral key).
	Handshakes map[domain.SignedPreKeyID]map[string]bool `json:"handshakes,omitempty"`
}

func newPreKeySet() *preKeySet {
	return &preKeySet{
		Signed:     make(map[domain.SignedPreKeyID]domain.SignedPreKeyPair),
		OneTime:    make(map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair),
		Handshakes: make(map[domain.SignedPreKeyID]map[string]bool),
	}
}

func (s *preKeySet) fixup() {
	if s.Signed == nil {
		s.Signed = make(map[domain.SignedPreKeyID]domain.SignedPreKeyPair)
	}
	if s.OneTime == nil {
		s.OneTime = make(map[domain.OneTimePreKeyID]domain.OneTimePreKeyPair)
	}
	if s.Handshakes == nil {
		s.Handshakes = make(map[domain.SignedPreKeyID]map[string]bool)
	}
}

// recordHandshake adds the handshake to spk's set and reports whether it
// was new.
func (s *preKeySet) recordHandshake(spk domain.SignedPreKeyID, initiator, ephemeral domain.X25519Public) bool {
	key := hex.EncodeToString(initiator[:]) + hex.EncodeToString(ephemeral[:])
	seen := s.Handshakes[spk]
	if seen == nil {
		seen = make(map[string]bool)
		s.Handshakes[spk] = seen
	}
	if seen[key] {
		return false
	}
	seen[key] = true
	return true
}

func (s *preKeySet) addOneTime(pairs []domain.OneTimePreKeyPair) {
	for _, p := range pairs {
		if _, ok := s.OneTime[p.ID]; !ok {
			s.OneTimeSeq = append(s.OneTimeSeq, p.ID)
		}
		s.OneTime[p.ID] = p
	}
}

func (s *preKeySet) consume(id domain.OneTimePreKeyID) (domain.OneTimePreKeyPair, bool) {
	p, ok := s.OneTime[id]
	if !ok {
		return p, false
	}
	delete(s.OneTime, id)
	for i, v := range s.OneTimeSeq {
		if v == id {
			s.OneTimeSeq = append(s.OneTimeSeq[:i:i], s.OneTimeSeq[i+1:]...)
			break
		}
	}
	return p, true
}

// publics lists one-time public keys in insertion order; keys missing from
// the order list (older files) follow, sorted by ID.
func (s *preKeySet) publics() []domain.OneTimePreKeyPublic {
	out := make([]domain.OneTimePreKeyPublic, 0, len(s.OneTime))
	seen := make(map[domain.OneTimePreKeyID]bool, len(s.OneTime))
	for _, id := range s.OneTimeSeq {
		if p, ok := s.OneTime[id]; ok && !seen[id] {
			out = append(out, domain.OneTimePreKeyPublic{ID: id, Pub: p.Pub})
			seen[id] = true
		}
	}
	var rest []domain.OneTimePreKeyPublic
	for id, p := range s.OneTime {
		if !seen[id] {
			rest = append(rest, domain.OneTimePreKeyPublic{ID: id, Pub: p.Pub})
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].ID < rest[j].ID })
	return append(out, rest...)
}
