package pipeline

import "strings"

// missingMarkers are textual spellings of an absent value in delimited
// exports, compared lower-cased. The set matches the default NA values of
// common dataframe readers, spreadsheet error cells included.
var missingMarkers = map[string]bool{
	"":         true,
	"na":       true,
	"n/a":      true,
	"nan":      true,
	"-nan":     true,
	"null":     true,
	"none":     true,
	"<na>":     true,
	"#na":      true,
	"#n/a":     true,
	"#n/a n/a": true,
	"1.#ind":   true,
	"-1.#ind":  true,
	"1.#qnan":  true,
	"-1.#qnan": true,
}

// Validate drops every record whose amount is missing or null. No other
// field is checked: an empty transaction_id or product is kept.
func Validate(batch []Record) (kept []Record, dropped int) {
	kept = make([]Record, 0, len(batch))
	for _, rec := range batch {
		if isMissing(rec.Fields, FieldAmount) {
			dropped++
			continue
		}
		kept = append(kept, rec)
	}
	return kept, dropped
}

func isMissing(m RawRecord, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return missingMarkers[strings.ToLower(strings.TrimSpace(s))]
	}
	return false
}
