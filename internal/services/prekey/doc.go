// Package prekey generates signed and one-time pre-keys, keeps the one-time
// pool topped up and assembles the public bundle.
package prekey
