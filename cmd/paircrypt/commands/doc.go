// Package commands defines the paircrypt CLI.
//
// Commands
//
//   - init           Create the local identity and pre-keys
//   - fingerprint    Print the identity fingerprint
//   - register       Publish the pre-key bundle to the relay
//   - start-session  Run X3DH against a peer's bundle
//   - send           Encrypt and send a message
//   - recv           Fetch and decrypt queued messages
//   - peers          List peers with a session
//   - reset          Discard the session with a peer
//
// Settings come from the TOML file in the home directory; flags override it.
// The root command builds the app before any subcommand runs, and commands
// that need key material unlock it with the passphrase.
package commands
