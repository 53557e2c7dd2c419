// Package message carries ratchet messages between a session directory and
// the relay.
//
// Sending encrypts through the directory and attaches the X3DH handshake
// while the peer has not replied. Receiving fetches queued envelopes in
// order, hands handshakes to Directory.Accept and everything else to
// Directory.Decrypt, then acknowledges what was handled.
package message
