package runner

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ShapeStdin terminates input with a newline. When flatten is set, every line
// holding a JSON array becomes "<count>\n<elements separated by spaces>".
// Lines that are not arrays pass through unchanged.
func ShapeStdin(input string, flatten bool) string {
	if flatten {
		lines := strings.Split(input, "\n")
		for i, line := range lines {
			if flat, ok := flattenArrayLine(line); ok {
				lines[i] = flat
			}
		}
		input = strings.Join(lines, "\n")
	}
	if !strings.HasSuffix(input, "\n") {
		input += "\n"
	}
	return input
}

func flattenArrayLine(line string) (string, bool) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if !strings.HasPrefix(trimmed, "[") {
		return "", false
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	var items []interface{}
	if err := dec.Decode(&items); err != nil {
		return "", false
	}
	if dec.More() {
		return "", false
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, formatElement(item))
	}
	return strconv.Itoa(len(items)) + "\n" + strings.Join(parts, " "), true
}

func formatElement(v interface{}) string {
	switch val := v.(type) {
	case json.Number:
		return val.String()
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return ""
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}
