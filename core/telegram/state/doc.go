// Package state keeps per-user conversation sessions for Telegram bots.
// Sessions live in memory and are mirrored to an optional Persister so they
// survive restarts.
package state
