// Package state provides per-user conversation state for Telegram bots: a
// State enum shared by handlers and a registry that serializes access to each
// user's entry. It does not know what the entries hold.
package state
