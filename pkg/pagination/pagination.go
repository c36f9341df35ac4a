package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageSizes are the page sizes the patient table offers.
var PageSizes = []int{5, 10, 15, 20, 25}

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit/offset, or page/page_size (page is 1-based), from
// the query string. defaultLimit applies when neither limit nor page_size is
// given; zero means DefaultLimit.
func FromContext(c echo.Context, defaultLimit int) Params {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit, _ = strconv.Atoi(c.QueryParam("page_size"))
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset <= 0 {
		if page, _ := strconv.Atoi(c.QueryParam("page")); page > 1 {
			offset = (page - 1) * limit
		}
	}
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Response wraps a paginated API response. NextOffset and PreviousOffset
// are omitted on the last and first page.
type Response struct {
	Data           any  `json:"data"`
	Total          int  `json:"total"`
	Limit          int  `json:"limit"`
	Offset         int  `json:"offset"`
	Page           int  `json:"page"`
	HasMore        bool `json:"has_more"`
	NextOffset     *int `json:"next_offset,omitempty"`
	PreviousOffset *int `json:"previous_offset,omitempty"`
}

func NewResponse(data any, total int, p Params) *Response {
	resp := &Response{
		Data:    data,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		Page:    p.Page(),
		HasMore: p.HasNext(total),
	}
	if resp.HasMore {
		next := p.NextOffset()
		resp.NextOffset = &next
	}
	if p.HasPrevious() {
		prev := p.PreviousOffset()
		resp.PreviousOffset = &prev
	}
	return resp
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

func (p Params) HasPrevious() bool {
	return p.Offset > 0
}

func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}

// PreviousOffset never goes below zero.
func (p Params) PreviousOffset() int {
	prev := p.Offset - p.Limit
	if prev < 0 {
		return 0
	}
	return prev
}

// Page is the 1-based page number the offset falls on.
func (p Params) Page() int {
	if p.Limit <= 0 {
		return 1
	}
	return p.Offset/p.Limit + 1
}
