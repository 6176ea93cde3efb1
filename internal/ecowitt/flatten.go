package ecowitt

import (
	"sort"
	"strconv"
	"strings"
)

// Flatten collapses a nested JSON object into a single-level map with
// dotted keys, e.g. {"temp": {"ch1": {"val": 13}}} becomes
// {"temp.ch1.val": 13}. Non-map leaves are carried across unchanged;
// parentKey, when non-empty, prefixes every key. Returns nil when source
// is nil.
func Flatten(source map[string]any, parentKey, separator string) map[string]any {
	if source == nil {
		return nil
	}
	if separator == "" {
		separator = "."
	}
	flat := make(map[string]any)
	for key, value := range source {
		full := key
		if parentKey != "" {
			full = parentKey + separator + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range Flatten(nested, full, separator) {
				flat[k] = v
			}
			continue
		}
		flat[full] = value
	}
	return flat
}

// ChannelEntry pairs a channel number with its payload object.
type ChannelEntry struct {
	Channel int
	Object  map[string]any
}

// ChanneliseEnumerate iterates a channelised response array, yielding each
// object keyed by its own channel field. The device labels the field
// "channel" in some blocks and "id" in others; both are recognised, with
// "channel" taking precedence. Objects with neither field, or with a
// non-numeric channel, are skipped.
func ChanneliseEnumerate(entries []any) []ChannelEntry {
	var out []ChannelEntry
	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		ch, ok := channelOf(obj)
		if !ok {
			continue
		}
		out = append(out, ChannelEntry{Channel: ch, Object: obj})
	}
	return out
}

func channelOf(obj map[string]any) (int, bool) {
	for _, key := range []string{"channel", "id"} {
		if raw, ok := obj[key]; ok {
			if n := coerceInt(raw); n != nil {
				return *n, true
			}
		}
	}
	return 0, false
}

// Obfuscate masks all but a short trailing portion of a credential for
// logging. The number of visible characters scales with length: four for
// strings longer than eight characters, then three, two, one, down to a
// fully masked string at two characters or fewer.
func Obfuscate(s string, obfChar string) string {
	if obfChar == "" {
		obfChar = "*"
	}
	var visible int
	switch {
	case len(s) > 8:
		visible = 4
	case len(s) > 6:
		visible = 3
	case len(s) > 4:
		visible = 2
	case len(s) > 2:
		visible = 1
	default:
		visible = 0
	}
	return strings.Repeat(obfChar, len(s)-visible) + s[len(s)-visible:]
}

// NaturalSortKeys returns the map's keys sorted naturally: embedded numbers
// compare by value, so ch2 sorts before ch10.
func NaturalSortKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return naturalLess(keys[i], keys[j])
	})
	return keys
}

func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		aTok, aNum, aRest := nextToken(a)
		bTok, bNum, bRest := nextToken(b)
		if aNum && bNum {
			an, _ := strconv.Atoi(aTok)
			bn, _ := strconv.Atoi(bTok)
			if an != bn {
				return an < bn
			}
		} else if aTok != bTok {
			return aTok < bTok
		}
		a, b = aRest, bRest
	}
	return a < b
}

// nextToken splits off the leading run of digits or non-digits.
func nextToken(s string) (token string, numeric bool, rest string) {
	isDigit := func(c byte) bool { return c >= '0' && c <= '9' }
	numeric = isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == numeric {
		i++
	}
	return s[:i], numeric, s[i:]
}
