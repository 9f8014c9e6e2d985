package report

import (
	"strings"
	"time"
)

// TimestampLayout formats the run time embedded in autogenerated names.
const TimestampLayout = "20060102-150405"

// ClassListSubject names the report that lists every class.
const ClassListSubject = "Class-List"

// BaseName returns the display name of a report about subject, a class name
// or ClassListSubject. A custom reportName yields "<reportName>-<subject>";
// otherwise the name is "SchemaReport-<subject>-<timestamp>".
func BaseName(reportName, subject string, now time.Time) string {
	if reportName = strings.TrimSpace(reportName); reportName != "" {
		return reportName + "-" + subject
	}
	return "SchemaReport-" + subject + "-" + now.Format(TimestampLayout)
}

// SanitizeFileName replaces path separators, characters reserved on common
// filesystems and control characters with underscores.
func SanitizeFileName(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return '_'
		case strings.ContainsRune(`<>:"/\|?*`, r):
			return '_'
		default:
			return r
		}
	}, name)

	sanitized = strings.Trim(sanitized, " .")
	if sanitized == "" {
		return "report"
	}
	return sanitized
}
