// pkg/converter/mapping.go
package converter

import (
	"time"
)

// timeLayouts are tried in order; the first layout that parses wins
var timeLayouts = []string{
	time.RFC3339Nano,                // ISO8601 with offset and fraction
	time.RFC3339,                    // ISO8601 with offset
	"2006-01-02T15:04:05.999999999", // ISO8601 naive with fraction
	"2006-01-02T15:04:05",           // ISO8601 naive
	"2006-01-02T15:04",              // ISO8601 naive without seconds
	"2006-01-02 15:04:05.999999999", // SQL timestamp with fraction
	"2006-01-02 15:04:05Z07:00",     // SQL timestamp with offset
	"2006-01-02 15:04:05",           // SQL timestamp
	"2006-01-02 15:04",              // SQL timestamp without seconds
	"2006-01-02",                    // Date only
	"20060102T150405Z",              // Compact ISO8601
	"20060102",                      // Compact date
	"01/02/2006",                    // US date
	"01/02/2006 15:04:05",           // US timestamp
	"01-02-2006",                    // US date with dashes
	"2006/01/02",                    // Slashed date
	"2 Jan 2006",                    // Day month year
	"January 2, 2006",               // Long month name
	"Jan 2, 2006",                   // Short month name
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
}

// DetectTimeFormat analyzes a value to determine its timestamp layout.
// It returns an empty string when no known layout matches.
func DetectTimeFormat(value string) string {
	for _, format := range timeLayouts {
		if _, err := time.Parse(format, value); err == nil {
			return format
		}
	}
	return ""
}
