// Package scanner peeks at single fields of raw JSON payloads without a
// full unmarshal. The feed demux only needs the channel tag of each frame;
// decoding the whole document there would be wasted work on the hot path.
package scanner

import "bytes"

// StringField returns the value of the first `"key": "value"` pair found in
// payload. It does not validate the document and does not unescape the
// value; it is only safe for fields known to hold plain strings, like
// channel tags and ids.
func StringField(payload []byte, key string) ([]byte, bool) {
	quoted := make([]byte, 0, len(key)+2)
	quoted = append(quoted, '"')
	quoted = append(quoted, key...)
	quoted = append(quoted, '"')

	idx := bytes.Index(payload, quoted)
	if idx < 0 {
		return nil, false
	}
	i := idx + len(quoted)
	for i < len(payload) && isSpace(payload[i]) {
		i++
	}
	if i >= len(payload) || payload[i] != ':' {
		return nil, false
	}
	i++
	for i < len(payload) && isSpace(payload[i]) {
		i++
	}
	if i >= len(payload) || payload[i] != '"' {
		return nil, false
	}
	i++
	end := bytes.IndexByte(payload[i:], '"')
	if end < 0 {
		return nil, false
	}
	return payload[i : i+end], true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
