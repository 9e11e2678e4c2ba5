package store

import (
	"sort"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"github.com/moontrade/streams/streamid"
)

// Entry is a single record read from a stream. Entries are not modified
// after they are read.
type Entry struct {
	Stream string
	ID     streamid.ID
	Fields map[string]string
}

// Field returns the value of a payload field.
func (e Entry) Field(name string) (string, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// MarshalEasyJSON writes the entry as {"stream":..,"id":..,"fields":{..}}
// with the fields sorted by name.
func (e Entry) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(`{"stream":`)
	w.String(e.Stream)
	w.RawString(`,"id":`)
	w.String(e.ID.String())
	w.RawString(`,"fields":{`)
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(k)
		w.RawByte(':')
		w.String(e.Fields[k])
	}
	w.RawString(`}}`)
}

func (e Entry) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	e.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

func (e *Entry) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "stream":
			e.Stream = in.String()
		case "id":
			if data := in.UnsafeBytes(); in.Ok() {
				in.AddError(e.ID.UnmarshalText(data))
			}
		case "fields":
			in.Delim('{')
			e.Fields = make(map[string]string)
			for !in.IsDelim('}') {
				k := in.String()
				in.WantColon()
				e.Fields[k] = in.String()
				in.WantComma()
			}
			in.Delim('}')
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	e.UnmarshalEasyJSON(&r)
	return r.Error()
}
