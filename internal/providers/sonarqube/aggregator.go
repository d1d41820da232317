// ABOUTME: Combines measures and issues of one analysis into a scan result.
// ABOUTME: Pure function with no I/O.

package sonarqube

import "github.com/jfeddern/ScanRelay/internal/types"

// Aggregate builds the scan result artifact for one project analysis
func Aggregate(projectKey, analysedAt string, measures types.Measures, issues types.IssueCategories) *types.ScanResult {
	return &types.ScanResult{
		ProjectKey: projectKey,
		ScanTime:   analysedAt,
		Measures:   measures,
		Issues:     issues,
	}
}
