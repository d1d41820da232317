// ABOUTME: Issue classification into the recognized metric categories.
// ABOUTME: Matches lower-cased issue types as prefixes of singularized category names.

package sonarqube

import (
	"strings"

	"github.com/jfeddern/ScanRelay/internal/types"
)

// Classify returns the first category whose name starts with the lower-cased
// issue type. Categories ending in "ies" are compared in their "y" form, so
// "VULNERABILITY" lands in "vulnerabilities".
func Classify(issueType string) (string, bool) {
	t := strings.ToLower(issueType)
	if t == "" {
		return "", false
	}

	for _, category := range types.Categories {
		stem := category
		if strings.HasSuffix(stem, "ies") {
			stem = strings.TrimSuffix(stem, "ies") + "y"
		}
		if strings.HasPrefix(stem, t) {
			return category, true
		}
	}
	return "", false
}
