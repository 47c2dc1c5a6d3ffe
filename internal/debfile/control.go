package debfile

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// Field is one "Key: value" entry of a control stanza. Continuation lines
// are joined to Value with "\n".
type Field struct {
	Key   string
	Value string
}

// Fields is a control stanza in file order
type Fields []Field

// Get returns the value of key, or "" when absent
func (f Fields) Get(key string) string {
	for _, field := range f {
		if strings.EqualFold(field.Key, key) {
			return field.Value
		}
	}
	return ""
}

// ParseControl splits a control file into its fields
func ParseControl(data []byte) (Fields, error) {
	var fields Fields

	scanner := bufio.NewScanner(bytes.NewReader(data))
	var currentKey string
	var currentValue strings.Builder

	for scanner.Scan() {
		line := scanner.Text()

		// Handle continuation lines (start with space)
		if len(line) > 0 && (line[0] == ' ' || line[0] == '\t') {
			if currentKey == "" {
				return nil, fmt.Errorf("continuation line before any field: %q", line)
			}
			currentValue.WriteString("\n")
			currentValue.WriteString(strings.TrimSpace(line))
			continue
		}

		// Save previous key-value pair
		if currentKey != "" {
			fields = append(fields, Field{Key: currentKey, Value: currentValue.String()})
			currentKey = ""
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed control line: %q", line)
		}
		currentKey = strings.TrimSpace(key)
		currentValue.Reset()
		currentValue.WriteString(strings.TrimSpace(value))
	}

	// Save last key-value pair
	if currentKey != "" {
		fields = append(fields, Field{Key: currentKey, Value: currentValue.String()})
	}

	return fields, scanner.Err()
}
