// Package displayname encodes and localizes display names. A stored display
// name is JSON: either a plain string or an object mapping locales to text.
package displayname

import (
	"encoding/json"
	"sort"
	"strings"
)

// DefaultLocale is the key consulted when the requested locale is missing
const DefaultLocale = "default"

// Wrap JSON-encodes a plain name. Values that already look like JSON (a
// quoted string or an object) are returned unchanged.
func Wrap(name string) string {
	if strings.HasPrefix(name, `"`) || strings.HasPrefix(name, "{") {
		return name
	}
	data, _ := json.Marshal(name)
	return string(data)
}

// Localize returns the text of raw for locale. Objects fall back to the
// default locale and then to the first locale in sorted order. Values that
// are not JSON are returned as-is; an empty result is reported as "".
func Localize(raw, locale string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
		return s
	}

	var translations map[string]string
	if err := json.Unmarshal([]byte(trimmed), &translations); err != nil {
		return raw
	}
	if text, ok := translations[locale]; ok && locale != "" {
		return text
	}
	if text, ok := translations[DefaultLocale]; ok {
		return text
	}
	locales := make([]string, 0, len(translations))
	for l := range translations {
		locales = append(locales, l)
	}
	sort.Strings(locales)
	if len(locales) > 0 {
		return translations[locales[0]]
	}
	return ""
}

// LocalizeOr is Localize with a fallback for empty results.
func LocalizeOr(raw, locale, fallback string) string {
	if text := Localize(raw, locale); text != "" {
		return text
	}
	return fallback
}
