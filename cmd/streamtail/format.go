package main

import (
	"github.com/mailru/easyjson"
	"github.com/moontrade/streams/store"
	"github.com/tidwall/gjson"
)

// format renders e as one JSON line. With a gjson path only the selected
// value is printed: strings bare, anything else as JSON. Entries where the
// path matches nothing render as nil.
func format(e store.Entry, sel string) ([]byte, error) {
	data, err := easyjson.Marshal(e)
	if err != nil {
		return nil, err
	}
	if sel == "" {
		return data, nil
	}
	res := gjson.GetBytes(data, sel)
	if !res.Exists() {
		return nil, nil
	}
	if res.Type == gjson.String {
		return []byte(res.Str), nil
	}
	return []byte(res.Raw), nil
}
