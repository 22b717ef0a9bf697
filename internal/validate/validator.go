package validate

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"melodex/internal/schema"
)

// Validation limits. Changing these changes the storage contract; the cache
// key prefix must be bumped alongside a schema change.
const (
	MaxTitleLength   = 500
	MaxURLLength     = 2000
	MaxContentLength = 5000
	MinDurationMs    = 1000     // 1 second
	MaxDurationMs    = 14400000 // 4 hours

	MinQueryLength = 2
	MaxQueryLength = 200

	maxMetadataKey      = 50
	maxMetadataItem     = 100
	maxMetadataList     = 20
	maxNestedDictSize   = 10
	maxMetadataStrValue = 500
)

var (
	dangerousPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?i)data:text/html`),
	}
	whitespaceRe = regexp.MustCompile(`\s+`)
	isrcRe       = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}\d{7}$`)
	durationRe   = regexp.MustCompile(`^(?:(\d+):)?(\d+):(\d{2})$`)
)

// InvalidInputError reports a Phase A validation failure. It is the only
// validation error surfaced directly to search callers.
type InvalidInputError struct {
	Field   string
	Message string
}

func (e *InvalidInputError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

// SearchInput validates a query and optional engine selection before any
// dispatch happens. known holds the set of recognized engine names.
func SearchInput(query string, engines []string, known map[string]bool) error {
	query = strings.TrimSpace(query)
	if len(query) < MinQueryLength {
		return &InvalidInputError{Field: "query", Message: "must be at least 2 characters"}
	}
	if len(query) > MaxQueryLength {
		return &InvalidInputError{Field: "query", Message: "too long (max 200 characters)"}
	}
	if containsDangerous(query) {
		return &InvalidInputError{Field: "query", Message: "contains invalid characters"}
	}
	for _, engine := range engines {
		if !known[engine] {
			return &InvalidInputError{Field: "engines", Message: "unknown engine " + engine}
		}
	}
	return nil
}

// SanitizeResult cleans a raw engine result in place: HTML entities decoded,
// dangerous patterns stripped, whitespace collapsed, text and URL fields
// truncated, durations normalized to milliseconds, metadata sanitized one
// level deep.
func SanitizeResult(r *schema.RawResult) {
	r.Title = SanitizeText(r.Title)
	if len(r.Title) > MaxTitleLength {
		r.Title = r.Title[:MaxTitleLength]
	}
	r.Content = SanitizeText(r.Content)
	if len(r.Content) > MaxContentLength {
		r.Content = r.Content[:MaxContentLength]
	}
	r.URL = SanitizeURL(r.URL)

	for _, field := range []string{"artist", "album", "track"} {
		if v := r.Field(field); v != "" {
			r.Fields[field] = truncate(SanitizeText(v), maxMetadataStrValue)
		}
	}
	if d, ok := r.Fields["duration"]; ok {
		if ms, valid := NormalizeDuration(d); valid {
			r.Fields["duration"] = ms
		} else {
			delete(r.Fields, "duration")
		}
	}
	for _, field := range []string{"thumbnail", "preview_url", "iframe_src", "audio_url"} {
		if v := r.Field(field); v != "" {
			r.Fields[field] = SanitizeURL(v)
		}
	}
	if meta, ok := r.Fields["metadata"].(map[string]any); ok {
		r.Fields["metadata"] = sanitizeMetadata(meta, true)
	}
}

// SanitizeText decodes entities, strips dangerous patterns and collapses
// whitespace. Output never matches any of the dangerous patterns.
func SanitizeText(text string) string {
	if text == "" {
		return ""
	}
	text = html.UnescapeString(text)
	for _, pattern := range dangerousPatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SanitizeURL returns a cleaned URL or "" when the value is unusable.
// Only http/https schemes survive; javascript:, data: and vbscript:
// substrings anywhere in the URL reject it outright.
func SanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return ""
	}
	lower := strings.ToLower(raw)
	for _, bad := range []string{"javascript:", "data:", "vbscript:"} {
		if strings.Contains(lower, bad) {
			return ""
		}
	}
	if len(raw) > MaxURLLength {
		raw = raw[:MaxURLLength]
	}
	return raw
}

// NormalizeDuration accepts a string or numeric duration and returns it in
// milliseconds. Numbers below 1000 are treated as seconds. Values outside
// [MinDurationMs, MaxDurationMs] are rejected.
func NormalizeDuration(v any) (int, bool) {
	var ms int
	switch d := v.(type) {
	case string:
		parsed, ok := ParseClockDuration(d)
		if !ok {
			return 0, false
		}
		ms = parsed
	case int:
		ms = numericToMs(float64(d))
	case int64:
		ms = numericToMs(float64(d))
	case float64:
		ms = numericToMs(d)
	default:
		return 0, false
	}
	if ms < MinDurationMs || ms > MaxDurationMs {
		return 0, false
	}
	return ms, true
}

// ParseClockDuration parses "MM:SS" or "HH:MM:SS" into milliseconds.
func ParseClockDuration(s string) (int, bool) {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	var hours, minutes, seconds int
	if m[1] != "" {
		fmt.Sscanf(m[1], "%d", &hours)
	}
	fmt.Sscanf(m[2], "%d", &minutes)
	fmt.Sscanf(m[3], "%d", &seconds)
	return (hours*3600 + minutes*60 + seconds) * 1000, true
}

// ValidISRC checks the ISRC format after stripping hyphens (CCXXXYYNNNNN).
// Empty is valid: the field is optional.
func ValidISRC(isrc string) bool {
	if isrc == "" {
		return true
	}
	return isrcRe.MatchString(strings.ToUpper(strings.ReplaceAll(isrc, "-", "")))
}

// NormalizedOK reports whether a normalized result satisfies the schema
// constraints. Results failing this are dropped before ranking.
func NormalizedOK(n *schema.NormalizedResult) bool {
	if n.Title == "" || len(n.Title) > MaxTitleLength {
		return false
	}
	if n.URL == "" || len(n.URL) > MaxURLLength {
		return false
	}
	u, err := url.Parse(n.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	if n.DurationMs != 0 && (n.DurationMs < MinDurationMs || n.DurationMs > MaxDurationMs) {
		return false
	}
	return ValidISRC(n.ISRC)
}

// StorageRecord is the shape checked before persistence.
type StorageRecord struct {
	Title      string
	DurationMs int
	ISRC       string
	URLs       map[string]string // field name -> URL
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ForStorage validates a record pre-persistence and returns the list of
// problems found. An empty list means the record may be stored.
func ForStorage(rec *StorageRecord) []error {
	var errs []error
	if rec.Title == "" {
		errs = append(errs, fmt.Errorf("title is required"))
	} else if len(rec.Title) > MaxTitleLength {
		errs = append(errs, fmt.Errorf("title too long (max %d chars)", MaxTitleLength))
	}
	if rec.DurationMs != 0 {
		if rec.DurationMs < MinDurationMs {
			errs = append(errs, fmt.Errorf("duration too short (min 1 second)"))
		} else if rec.DurationMs > MaxDurationMs {
			errs = append(errs, fmt.Errorf("duration too long (max 4 hours)"))
		}
	}
	for field, raw := range rec.URLs {
		if raw == "" {
			continue
		}
		if len(raw) > MaxURLLength {
			errs = append(errs, fmt.Errorf("%s too long (max %d chars)", field, MaxURLLength))
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s is not a valid URL", field))
		}
	}
	if !ValidISRC(rec.ISRC) {
		errs = append(errs, fmt.Errorf("invalid ISRC code format"))
	}
	return errs
}

// PrepareForStorage truncates defensively and stamps timestamps on a record
// that already passed ForStorage.
func PrepareForStorage(rec *StorageRecord) {
	if len(rec.Title) > MaxTitleLength {
		rec.Title = rec.Title[:MaxTitleLength]
	}
	for field, raw := range rec.URLs {
		if len(raw) > MaxURLLength {
			rec.URLs[field] = raw[:MaxURLLength]
		}
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
}

func sanitizeMetadata(meta map[string]any, recurse bool) map[string]any {
	clean := make(map[string]any, len(meta))
	for key, value := range meta {
		cleanKey := truncate(SanitizeText(key), maxMetadataKey)
		switch v := value.(type) {
		case string:
			clean[cleanKey] = truncate(SanitizeText(v), maxMetadataStrValue)
		case bool, int, int64, float64:
			clean[cleanKey] = v
		case []any:
			list := make([]any, 0, maxMetadataList)
			for i, item := range v {
				if i >= maxMetadataList {
					break
				}
				switch it := item.(type) {
				case string:
					list = append(list, truncate(SanitizeText(it), maxMetadataItem))
				case bool, int, int64, float64:
					list = append(list, it)
				}
			}
			clean[cleanKey] = list
		case map[string]any:
			if !recurse {
				continue
			}
			nested := make(map[string]any, maxNestedDictSize)
			for nk, nv := range v {
				if len(nested) >= maxNestedDictSize {
					break
				}
				nested[truncate(SanitizeText(nk), maxMetadataKey)] =
					truncate(SanitizeText(fmt.Sprint(nv)), maxMetadataItem)
			}
			clean[cleanKey] = nested
		}
	}
	return clean
}

func containsDangerous(text string) bool {
	for _, pattern := range dangerousPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func numericToMs(v float64) int {
	if v < 1000 {
		return int(v * 1000)
	}
	return int(v)
}
