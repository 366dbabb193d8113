// Package callbacks encodes and decodes inline button data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// MaxDataBytes is Telegram's limit for callback_data.
const MaxDataBytes = 64

// Encode builds Telebot's "\f<unique>|<payload>" callback data.
func Encode(unique, payload string) string {
	if payload == "" {
		return "\f" + unique
	}
	return "\f" + unique + "|" + payload
}

// Fits reports whether the encoded data stays within Telegram's limit.
func Fits(unique, payload string) bool {
	return len(Encode(unique, payload)) <= MaxDataBytes
}

// ParseCallbackData splits callback data into unique and payload. Data sent
// without the form feed prefix is treated the same way.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	unique, payload, _ := strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// CallbackKey returns cb.Unique if present; otherwise parses from Data.
func CallbackKey(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	k, _ := ParseCallbackData(cb)
	return k
}

// CallbackPayload returns the part after '|'. Telebot strips the unique
// prefix from Data when it routes to a unique handler, so both shapes work.
func CallbackPayload(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Data
	}
	_, payload := ParseCallbackData(cb)
	return payload
}
