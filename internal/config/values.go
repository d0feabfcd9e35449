package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

var errUnknownKey = errors.New("unknown key")

// secretKeys are masked by ListValues.
var secretKeys = map[string]bool{
	"llm.api_key":        true,
	"telegram.api_hash":  true,
	"notify.bot_token":   true,
	"store.database_url": true,
}

// IsSecretKey reports whether the dot-separated key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Entry is one setting under its dot-separated key, e.g. "telegram.chat_id".
type Entry struct {
	Key   string
	Value any
}

// ListValues returns every setting of cfg sorted by key. Secrets are masked
// when mask is set.
func ListValues(cfg *Config, mask bool) ([]Entry, error) {
	flat, err := flatValues(cfg)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v := flat[k]
		if mask {
			v = maskSecret(k, v)
		}
		entries = append(entries, Entry{Key: k, Value: v})
	}
	return entries, nil
}

// GetValue returns the setting stored under key in the file at path,
// creating the file with defaults first if it does not exist. Environment
// overrides are not applied.
func GetValue(path, key string) (any, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	flat, err := flatValues(cfg)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, &Error{Key: key, Err: errUnknownKey}
	}
	return v, nil
}

// SetValue parses value according to the type of the setting under key and
// writes the updated config back to the existing file at path.
func SetValue(path, key, value string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := loadFile(path)
	if err != nil {
		return err
	}
	flat, err := flatValues(cfg)
	if err != nil {
		return err
	}
	current, ok := flat[key]
	if !ok {
		return &Error{Key: key, Err: errUnknownKey}
	}
	v, err := parseAs(current, value)
	if err != nil {
		return &Error{Key: key, Err: err}
	}
	flat[key] = v

	data, err := json.Marshal(unflatten(flat))
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	updated := &Config{}
	if err := json.Unmarshal(data, updated); err != nil {
		return &Error{Key: key, Err: err}
	}
	return Save(path, updated)
}

// flatValues maps every leaf of cfg to its dot-separated key. Integers stay
// int64 so large chat IDs keep every digit.
func flatValues(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree map[string]any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	flat := make(map[string]any)
	flatten("", tree, flat)
	return flat, nil
}

func flatten(prefix string, tree, out map[string]any) {
	for k, v := range tree {
		if prefix != "" {
			k = prefix + "." + k
		}
		switch leaf := v.(type) {
		case map[string]any:
			flatten(k, leaf, out)
		case json.Number:
			if i, err := leaf.Int64(); err == nil {
				out[k] = i
			} else {
				f, _ := leaf.Float64()
				out[k] = f
			}
		default:
			out[k] = v
		}
	}
}

func unflatten(flat map[string]any) map[string]any {
	tree := make(map[string]any)
	for key, v := range flat {
		node := tree
		for {
			head, rest, nested := strings.Cut(key, ".")
			if !nested {
				node[head] = v
				break
			}
			child, ok := node[head].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[head] = child
			}
			node, key = child, rest
		}
	}
	return tree
}

// parseAs reads value as the same kind as current. Whether a number fits
// the field (int or float) is left to the typed decode in SetValue.
func parseAs(current any, value string) (any, error) {
	switch current.(type) {
	case int64, float64:
		s := strings.TrimSpace(value)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", value)
		}
		return f, nil
	case bool:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", value)
		}
		return b, nil
	default:
		return value, nil
	}
}

// maskSecret shows only the last four characters of a secret.
func maskSecret(key string, v any) any {
	s, ok := v.(string)
	if !secretKeys[key] || !ok || s == "" {
		return v
	}
	if len(s) <= 4 {
		return "***" + s
	}
	return "***" + s[len(s)-4:]
}
