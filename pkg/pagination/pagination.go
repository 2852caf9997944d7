package pagination

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	// DefaultLimit is the roster page size.
	DefaultLimit = 12
	MaxLimit     = 100
)

// Params holds pagination parameters extracted from a request. Page is
// 1-based.
type Params struct {
	Limit  int
	Offset int
	Page   int
}

// New returns params for a 1-based page.
func New(page, limit int) Params {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page < 1 {
		page = 1
	}
	return Params{Limit: limit, Offset: (page - 1) * limit, Page: page}
}

// FromContext extracts pagination parameters from the echo context. The
// page query parameter wins over offset.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page, _ := strconv.Atoi(c.QueryParam("page")); page > 0 {
		return New(page, limit)
	}
	p := New(1, limit)
	if offset, _ := strconv.Atoi(c.QueryParam("offset")); offset > 0 {
		p.Offset = offset
		p.Page = offset/p.Limit + 1
	}
	return p
}

// Clamp moves the params back onto the last page when they point past
// total.
func (p Params) Clamp(total int) Params {
	if last := Pages(total, p.Limit); p.Page > last {
		return New(last, p.Limit)
	}
	return p
}

// Window returns the [start, end) slice bounds of the page within total.
func (p Params) Window(total int) (int, int) {
	start := p.Offset
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

// Pages returns the number of pages needed for total items; at least one.
func Pages(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	Page    int         `json:"page"`
	Pages   int         `json:"pages"`
	HasMore bool        `json:"has_more"`
}

func NewResponse(data interface{}, total int, p Params) *Response {
	return &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Page:    p.Page,
		Pages:   Pages(total, p.Limit),
		HasMore: p.HasNext(total),
	}
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// HasPrevious returns true if there are results before the current page.
func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

// Link is a navigation link for an HTML pager.
type Link struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// Links returns previous and next links for basePath, carrying query
// (filters, sort) through. The page parameter is replaced.
func (p Params) Links(basePath string, query url.Values, total int) []Link {
	build := func(page int) string {
		q := url.Values{}
		for k, v := range query {
			q[k] = append([]string(nil), v...)
		}
		q.Set("page", strconv.Itoa(page))
		return basePath + "?" + q.Encode()
	}
	var links []Link
	if p.HasPrevious() {
		links = append(links, Link{Relation: "previous", URL: build(p.Page - 1)})
	}
	if p.HasNext(total) {
		links = append(links, Link{Relation: "next", URL: build(p.Page + 1)})
	}
	return links
}
