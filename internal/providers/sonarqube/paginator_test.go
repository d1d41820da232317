// ABOUTME: Tests for page count computation and paginator edge cases.
// ABOUTME: Request sequencing is covered in client_test.go.

package sonarqube

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"
)

func TestPageCount(t *testing.T) {
	tests := []struct {
		total, pageSize, want int
	}{
		{0, 100, 1},
		{1, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{5, 2, 3},
		{4, 2, 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pageCount(tt.total, tt.pageSize), "total=%d pageSize=%d", tt.total, tt.pageSize)
	}
}

func TestPaginatorRejectsInvalidPaging(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		wantMsg string
	}{
		{"no paging", map[string]any{"issues": []any{}}, `"paging" is required`},
		{"no total", map[string]any{"paging": map[string]any{"pageIndex": 1, "pageSize": 2}}, `"total" is required`},
		{"zero page size", map[string]any{"paging": map[string]any{"pageIndex": 1, "pageSize": 0, "total": 3}}, `"pageSize" must be greater than 0`},
		{"non-numeric total", map[string]any{"paging": map[string]any{"pageIndex": 1, "pageSize": 2, "total": "three"}}, `"total" must be a number`},
		{"fractional page size", map[string]any{"paging": map[string]any{"pageIndex": 1, "pageSize": 2.5, "total": 3}}, `"pageSize" must be an integer`},
		{"paging not an object", map[string]any{"paging": 3}, `"paging" must be an object`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			gock.New(testHost).Get(IssuesEndpoint).Reply(200).JSON(tt.body)

			paginator := newTestClient(t, "").FetchAllPages(IssuesEndpoint, nil)
			require.True(t, paginator.HasMorePages())

			_, err := paginator.NextPage(context.Background())
			assert.EqualError(t, err, tt.wantMsg)
			assert.False(t, paginator.HasMorePages())
		})
	}
}

func TestPaginatorDoesNotMutateQuery(t *testing.T) {
	defer gock.Off()
	gock.New(testHost).Get(IssuesEndpoint).Reply(200).
		JSON(map[string]any{"paging": map[string]any{"pageIndex": 1, "pageSize": 2, "total": 1}})

	query := map[string][]string{"componentKeys": {"k"}}
	paginator := newTestClient(t, "").FetchAllPages(IssuesEndpoint, query)
	_, err := paginator.NextPage(context.Background())
	require.NoError(t, err)

	assert.NotContains(t, query, "p")
	assert.False(t, paginator.HasMorePages())
}

func TestPaginatorAcceptsNumericStringPaging(t *testing.T) {
	defer gock.Off()
	gock.New(testHost).Get(IssuesEndpoint).Reply(200).
		JSON(map[string]any{"paging": map[string]any{"pageIndex": "1", "pageSize": "2", "total": "5"}})

	paginator := newTestClient(t, "").FetchAllPages(IssuesEndpoint, nil)
	_, err := paginator.NextPage(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, paginator.TotalPages())
	assert.True(t, paginator.HasMorePages())
}
