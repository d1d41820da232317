// ABOUTME: Sequential page iteration over paginated SonarQube endpoints.
// ABOUTME: The first page's paging envelope fixes how many pages are requested.

package sonarqube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/jfeddern/ScanRelay/internal/types"
)

// ErrNoMorePages is returned by NextPage once every page has been produced
var ErrNoMorePages = errors.New("no more pages")

// Paging is the envelope SonarQube attaches to paginated responses
type Paging struct {
	PageIndex *int `json:"pageIndex" validate:"required"`
	PageSize  *int `json:"pageSize" validate:"required,gt=0"`
	Total     *int `json:"total" validate:"required"`
}

// UnmarshalJSON accepts JSON integers and integer strings for every paging field
func (p *Paging) UnmarshalJSON(data []byte) error {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return &types.ValidationError{Field: "paging", Message: `"paging" must be an object`}
	}

	var raw struct {
		PageIndex json.RawMessage `json:"pageIndex"`
		PageSize  json.RawMessage `json:"pageSize"`
		Total     json.RawMessage `json:"total"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if p.PageIndex, err = pagingNumber("pageIndex", raw.PageIndex); err != nil {
		return err
	}
	if p.PageSize, err = pagingNumber("pageSize", raw.PageSize); err != nil {
		return err
	}
	p.Total, err = pagingNumber("total", raw.Total)
	return err
}

func pagingNumber(field string, raw json.RawMessage) (*int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var v types.MetricValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, &types.ValidationError{Field: field, Message: fmt.Sprintf("%q must be a number", field)}
	}
	if f := float64(v); f != math.Trunc(f) {
		return nil, &types.ValidationError{Field: field, Message: fmt.Sprintf("%q must be an integer", field)}
	}

	n := int(v)
	return &n, nil
}

type pagingEnvelope struct {
	Paging *Paging `json:"paging" validate:"required"`
}

// Page is one response of a (possibly paginated) endpoint
type Page struct {
	Number int
	Body   json.RawMessage
}

// Paginator produces the pages of one endpoint in ascending order, starting at
// page 1. It is not restartable; call FetchAllPages again to start over.
type Paginator struct {
	client     *Client
	endpoint   string
	query      url.Values
	nextPage   int
	totalPages int
	started    bool
	done       bool
}

// FetchAllPages returns a paginator over endpoint. No request is sent until
// NextPage is called.
func (c *Client) FetchAllPages(endpoint string, query url.Values) *Paginator {
	return &Paginator{
		client:   c,
		endpoint: endpoint,
		query:    query,
		nextPage: 1,
	}
}

// HasMorePages reports whether NextPage will send another request
func (p *Paginator) HasMorePages() bool {
	if p.done {
		return false
	}
	return !p.started || p.nextPage <= p.totalPages
}

// TotalPages is the page count computed from the first page, or 0 before it
func (p *Paginator) TotalPages() int {
	return p.totalPages
}

// NextPage fetches the next page. The first page is validated against the
// paging envelope; later pages are not re-checked.
func (p *Paginator) NextPage(ctx context.Context) (*Page, error) {
	if !p.HasMorePages() {
		return nil, ErrNoMorePages
	}

	query := url.Values{}
	for k, v := range p.query {
		query[k] = append([]string(nil), v...)
	}
	query.Set("p", strconv.Itoa(p.nextPage))

	page, err := p.client.FetchPage(ctx, p.endpoint, query)
	if err != nil {
		p.done = true
		return nil, err
	}

	if !p.started {
		var env pagingEnvelope
		if err := p.client.validator.DecodeJSON(page.Body, &env, "response"); err != nil {
			p.done = true
			return nil, err
		}
		p.totalPages = pageCount(*env.Paging.Total, *env.Paging.PageSize)
		p.started = true
	}

	page.Number = p.nextPage
	p.nextPage++
	return page, nil
}

// pageCount is ceil(total/pageSize); the first page is always produced
func pageCount(total, pageSize int) int {
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}
