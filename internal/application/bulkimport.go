package application

import (
	"strings"
	"time"
	"unicode"

	"github.com/ericfisherdev/sharedlogin/internal/domain/model"
)

// importDateLayouts are the date formats accepted in the third column of a
// bulk import line.
var importDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// ParseBulkImport turns pasted text into credentials for one service, one per
// line. A line holds an account, a secret and an optional date separated by
// commas, pipes or whitespace. Blank lines and lines with fewer than two
// fields are skipped. A missing or unparsable date becomes now. Returned
// credentials are visible and have no ID yet.
func ParseBulkImport(service, text string, now time.Time) []model.Credential {
	var creds []model.Credential
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.FieldsFunc(line, isImportSeparator)
		if len(fields) < 2 {
			continue
		}

		publishedAt := now
		if len(fields) >= 3 {
			if t, ok := parseImportDate(fields[2]); ok {
				publishedAt = t
			}
		}

		creds = append(creds, model.Credential{
			Service:     service,
			AccountID:   fields[0],
			Secret:      fields[1],
			PublishedAt: publishedAt,
			Visible:     true,
		})
	}
	return creds
}

func isImportSeparator(r rune) bool {
	return r == ',' || r == '|' || unicode.IsSpace(r)
}

func parseImportDate(s string) (time.Time, bool) {
	for _, layout := range importDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
