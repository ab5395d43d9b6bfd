// Package codec decodes the upstream feed's compressed payloads:
// base64-or-raw bytes, raw-deflate (no zlib header), then JSON.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/flate"
)

// CompressedSuffix marks a feed name as carrying a base64/raw-deflate
// payload that must be run through Decode before use.
const CompressedSuffix = ".z"

// StripSuffix returns the feed's effective name with the ".z" compression
// marker removed, and whether the suffix was present.
func StripSuffix(feedName string) (string, bool) {
	n := len(feedName) - len(CompressedSuffix)
	if n <= 0 || feedName[n:] != CompressedSuffix {
		return feedName, false
	}
	return feedName[:n], true
}

// Decode accepts either a base64-encoded string or raw bytes, inflates it
// as raw deflate (negative window bits — no zlib header), and parses the
// result as JSON into a generic tree. On any failure it returns (nil,
// false); the caller silently discards undecodable payloads rather than
// propagating an error.
func Decode(payload any) (any, bool) {
	raw, ok := toBytes(payload)
	if !ok {
		return nil, false
	}

	inflated, ok := inflateRaw(raw)
	if !ok {
		return nil, false
	}

	var tree any
	if err := json.Unmarshal(inflated, &tree); err != nil {
		return nil, false
	}
	return tree, true
}

func toBytes(payload any) ([]byte, bool) {
	switch v := payload.(type) {
	case string:
		if decoded, err := base64.StdEncoding.DecodeString(v); err == nil {
			return decoded, true
		}
		// Not valid base64 — treat the string's bytes as the raw payload.
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}

// Encode is the inverse of Decode's inflate+parse steps: JSON-marshal v,
// raw-deflate compress it, then base64-encode. Used by tests to build
// fixtures exercising the decode path; the live Transport never needs it
// since the upstream does its own compression.
func Encode(v any) (string, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return "", false
	}
	if _, err := w.Write(data); err != nil {
		return "", false
	}
	if err := w.Close(); err != nil {
		return "", false
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), true
}

func inflateRaw(compressed []byte) ([]byte, bool) {
	r := flate.NewReader(bytes.NewReader(compressed))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, false
	}
	return out, true
}
