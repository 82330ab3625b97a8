package ingest

import (
	"database/sql"
	"strconv"
	"strings"
)

// columnMap binds canonical field names to CSV column indexes. Header matching
// is resolved once per file, before row iteration, so the parse loop stays
// free of string matching.
type columnMap map[string]int

// resolveColumns maps each canonical field to the first header that matches
// one of its acceptable spellings, case-insensitively. With tolerant set, a
// spelling may also match as a substring of the header, which absorbs variants
// like "Max Temp (°C)" vs "Max Temp".
func resolveColumns(header []string, spellings map[string][]string, tolerant bool) columnMap {
	lower := make([]string, len(header))
	for i, h := range header {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}

	cols := make(columnMap, len(spellings))
	for field, keys := range spellings {
		for _, key := range keys {
			k := strings.ToLower(key)
			idx := -1
			for i, h := range lower {
				if h == k {
					idx = i
					break
				}
			}
			if idx < 0 && tolerant {
				for i, h := range lower {
					if strings.Contains(h, k) {
						idx = i
						break
					}
				}
			}
			if idx >= 0 {
				cols[field] = idx
				break
			}
		}
	}
	return cols
}

// get returns the trimmed cell for a canonical field, or "" when the field is
// unmapped or the record is short.
func (m columnMap) get(record []string, field string) string {
	i, ok := m[field]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// coerceFloat applies the climate-data coercion rules: empty and the "M"
// (missing) sentinel are absent, "T" (trace) becomes the trace amount, and
// anything unparseable is treated as absent rather than failing the row.
func coerceFloat(s string, trace float64) sql.NullFloat64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullFloat64{}
	}
	switch strings.ToUpper(s) {
	case "M":
		return sql.NullFloat64{}
	case "T":
		return sql.NullFloat64{Float64: trace, Valid: true}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// coerceInt is coerceFloat truncated to an integer.
func coerceInt(s string, trace float64) sql.NullInt64 {
	f := coerceFloat(s, trace)
	if !f.Valid {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(f.Float64), Valid: true}
}

// stripBOM removes a UTF-8 byte order mark from the first header cell. The
// city portal exports files with one.
func stripBOM(header []string) {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
}
