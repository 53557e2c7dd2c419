// Package domain defines core data models and interfaces shared across paircrypt.
// It contains plain types (wire/state), the error taxonomy of the protocol core
// and contracts (interfaces) only.
package domain
