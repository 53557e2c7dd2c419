// Package app wires the client's dependencies from its configuration.
//
// New builds everything that does not need the identity passphrase: the
// logging backend, the pre-key and identity file stores and the relay
// client. Unlock loads the identity and opens the session database, giving
// a Wire with the session directory and the message service.
package app
