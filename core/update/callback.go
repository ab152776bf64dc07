package update

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParseCallbackData splits telebot's "\f<unique>|<payload>" callback encoding.
// Plain data without the prefix is returned as the payload.
func ParseCallbackData(data string) (unique, payload string) {
	raw, ok := strings.CutPrefix(data, "\f")
	if !ok {
		return "", data
	}
	unique, payload, _ = strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// CallbackData returns the unique button id and the payload of a callback.
func (e *Event) CallbackData() (unique, payload string, ok bool) {
	cb := e.raw.Callback
	if cb == nil {
		return "", "", false
	}
	unique, payload = ParseCallbackData(cb.Data)
	if cb.Unique != "" {
		unique = cb.Unique
	}
	return unique, payload, true
}

// CallbackValue looks up path in a JSON callback payload.
func (e *Event) CallbackValue(path string) (gjson.Result, bool) {
	_, payload, ok := e.CallbackData()
	if !ok || !gjson.Valid(payload) {
		return gjson.Result{}, false
	}
	res := gjson.Get(payload, path)
	return res, res.Exists()
}

// IsCallback reports whether the update is a callback with the given unique id.
func (e *Event) IsCallback(unique string) bool {
	u, _, ok := e.CallbackData()
	return ok && u == unique
}
