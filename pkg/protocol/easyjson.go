package protocol

// Hand-written easyjson bindings for the hot path: book snapshot and
// update messages are the highest-frequency frames this client decodes,
// so these three types get the jwriter/jlexer fast path
// (github.com/mailru/easyjson) instead of reflection-based encoding/json.
// Everything else in this package stays on plain encoding/json.
//
// mdecimal.Decimal (shopspring/decimal) implements encoding/json's
// Marshaler/Unmarshaler but not easyjson's; following easyjson's own
// codegen convention for external non-easyjson types, its bytes are
// read/written via Raw() rather than re-implemented here.

import (
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"marketfeed/pkg/market"
)

func (v Level) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"price":`)
	w.Raw(v.Price.MarshalJSON())
	w.RawByte(',')
	w.RawString(`"qty":`)
	w.Raw(v.Qty.MarshalJSON())
	w.RawByte('}')
}

func (v *Level) UnmarshalEasyJSON(in *jlexer.Lexer) {
	if in.IsNull() {
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
		case "price":
			in.AddError(v.Price.UnmarshalJSON(in.Raw()))
		case "qty":
			in.AddError(v.Qty.UnmarshalJSON(in.Raw()))
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func (v Level) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	v.MarshalEasyJSON(&w)
	return w.BuildBytes()
}

func (v *Level) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	v.UnmarshalEasyJSON(&r)
	return r.Error()
}

func marshalLevels(w *jwriter.Writer, levels []Level) {
	w.RawByte('[')
	for i, l := range levels {
		if i > 0 {
			w.RawByte(',')
		}
		l.MarshalEasyJSON(w)
	}
	w.RawByte(']')
}

func unmarshalLevels(in *jlexer.Lexer) []Level {
	if in.IsNull() {
		in.Skip()
		return nil
	}
	var out []Level
	in.Delim('[')
	for !in.IsDelim(']') {
		var l Level
		l.UnmarshalEasyJSON(in)
		out = append(out, l)
		in.WantComma()
	}
	in.Delim(']')
	return out
}

func (v SnapshotData) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"symbol":`)
	w.String(string(v.Symbol))
	w.RawByte(',')
	w.RawString(`"bids":`)
	marshalLevels(w, v.Bids)
	w.RawByte(',')
	w.RawString(`"asks":`)
	marshalLevels(w, v.Asks)
	w.RawByte(',')
	w.RawString(`"checksum":`)
	w.Uint32(v.Checksum)
	if v.Sequence != 0 {
		w.RawByte(',')
		w.RawString(`"sequence":`)
		w.Uint64(v.Sequence)
	}
	w.RawByte('}')
}

func (v *SnapshotData) UnmarshalEasyJSON(in *jlexer.Lexer) {
	if in.IsNull() {
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
		case "symbol":
			v.Symbol = market.Symbol(in.String())
		case "bids":
			v.Bids = unmarshalLevels(in)
		case "asks":
			v.Asks = unmarshalLevels(in)
		case "checksum":
			v.Checksum = in.Uint32()
		case "sequence":
			v.Sequence = in.Uint64()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func (v SnapshotData) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	v.MarshalEasyJSON(&w)
	return w.BuildBytes()
}

func (v *SnapshotData) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	v.UnmarshalEasyJSON(&r)
	return r.Error()
}

func (v UpdateData) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"symbol":`)
	w.String(string(v.Symbol))
	w.RawByte(',')
	w.RawString(`"bids":`)
	marshalLevels(w, v.Bids)
	w.RawByte(',')
	w.RawString(`"asks":`)
	marshalLevels(w, v.Asks)
	w.RawByte(',')
	w.RawString(`"checksum":`)
	w.Uint32(v.Checksum)
	if v.Sequence != 0 {
		w.RawByte(',')
		w.RawString(`"sequence":`)
		w.Uint64(v.Sequence)
	}
	if v.Timestamp != "" {
		w.RawByte(',')
		w.RawString(`"timestamp":`)
		w.String(v.Timestamp)
	}
	w.RawByte('}')
}

func (v *UpdateData) UnmarshalEasyJSON(in *jlexer.Lexer) {
	if in.IsNull() {
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
		case "symbol":
			v.Symbol = market.Symbol(in.String())
		case "bids":
			v.Bids = unmarshalLevels(in)
		case "asks":
			v.Asks = unmarshalLevels(in)
		case "checksum":
			v.Checksum = in.Uint32()
		case "sequence":
			v.Sequence = in.Uint64()
		case "timestamp":
			v.Timestamp = in.String()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

func (v UpdateData) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	v.MarshalEasyJSON(&w)
	return w.BuildBytes()
}

func (v *UpdateData) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	v.UnmarshalEasyJSON(&r)
	return r.Error()
}
