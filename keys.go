package querycache

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Params are the query parameters a cache key is derived from.
// Values must be JSON-serializable.
type Params map[string]any

// GenerateKey renders prefix and params as "prefix:a=<json>&b=<json>" with
// parameter names sorted, so insertion order never affects the key.
// Empty params yield "prefix:".
func GenerateKey(prefix string, params Params) (string, error) {
	if len(params) == 0 {
		return prefix + ":", nil
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		sb  strings.Builder
		buf bytes.Buffer
	)
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	sb.WriteString(prefix)
	sb.WriteByte(':')
	for i, name := range names {
		buf.Reset()
		if err := enc.Encode(params[name]); err != nil {
			return "", &KeyError{Prefix: prefix, Param: name, Err: err}
		}
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.Write(bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}))
	}
	return sb.String(), nil
}
