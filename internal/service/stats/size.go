package stats

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// legacySizePattern matches sizes written as text by older clients, e.g. "2.5 MB" or "512"
var legacySizePattern = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*(B|KB|MB|GB|TB)?`)

// binary multipliers; legacy data used 1024-based units under SI names
var unitMultipliers = map[string]float64{
	"B":  1,
	"KB": 1024,
	"MB": 1024 * 1024,
	"GB": 1024 * 1024 * 1024,
	"TB": 1024 * 1024 * 1024 * 1024,
}

// ParseLegacySize converts a unit-suffixed size string to bytes.
// A missing unit means bytes; unparseable input yields 0.
func ParseLegacySize(s string) int64 {
	match := legacySizePattern.FindStringSubmatch(s)
	if match == nil {
		return 0
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	unit := strings.ToUpper(match[2])
	if unit == "" {
		unit = "B"
	}
	return int64(math.Round(value * unitMultipliers[unit]))
}

// sizeBytes interprets a raw size column value
func sizeBytes(v interface{}) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(math.Round(n))
	case string:
		return ParseLegacySize(n)
	case []byte:
		return ParseLegacySize(string(n))
	default:
		return 0
	}
}

// countValue interprets a raw downloads column value; anything non-numeric counts as 0
func countValue(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
