package normalizer

import "regexp"

// spaceRun matches one or more literal ASCII spaces. Tabs and newlines are left alone.
var spaceRun = regexp.MustCompile(` +`)

// Normalize collapses every run of spaces in raw into a single space
func Normalize(raw string) string {
	return spaceRun.ReplaceAllLiteralString(raw, " ")
}
