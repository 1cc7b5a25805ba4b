package handlers

import (
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// queryParams reads optional typed values from URL query
// Parse failures are collected per parameter name
type queryParams struct {
	values url.Values
	errs   map[string]string
}

func newQueryParams(values url.Values) *queryParams {
	return &queryParams{values: values, errs: make(map[string]string)}
}

func (q *queryParams) fail(name string, msg string) {
	q.errs[name] = msg
}

func (q *queryParams) Valid() bool {
	return len(q.errs) == 0
}

func (q *queryParams) Errors() map[string]string {
	return q.errs
}

func (q *queryParams) UUID(name string) *uuid.UUID {
	raw := q.values.Get(name)
	if raw == "" {
		return nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		q.fail(name, "Invalid UUID")
		return nil
	}
	return &id
}

// Time in RFC 3339 format
func (q *queryParams) Time(name string) *time.Time {
	raw := q.values.Get(name)
	if raw == "" {
		return nil
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		q.fail(name, "Invalid time, RFC 3339 expected")
		return nil
	}
	return &t
}

func (q *queryParams) Decimal(name string) *decimal.Decimal {
	raw := q.values.Get(name)
	if raw == "" {
		return nil
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		q.fail(name, "Invalid number")
		return nil
	}
	return &d
}

func (q *queryParams) OneOf(name string, allowed ...string) *string {
	raw := q.values.Get(name)
	if raw == "" {
		return nil
	}

	for _, a := range allowed {
		if raw == a {
			return &raw
		}
	}
	q.fail(name, "Invalid value")
	return nil
}

func (q *queryParams) Int(name string, def int, lo int, hi int) int {
	raw := q.values.Get(name)
	if raw == "" {
		return def
	}

	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		q.fail(name, "Invalid integer")
	case n < lo:
		q.fail(name, "Value is too small (minimum "+strconv.Itoa(lo)+")")
	case n > hi:
		q.fail(name, "Value is too big (maximum "+strconv.Itoa(hi)+")")
	}
	return n
}

// Page number and size with defaults
func (q *queryParams) Page() (page int, pageSize int) {
	page = q.Int("page", 1, 1, math.MaxInt32)
	pageSize = q.Int("page_size", defaultPageSize, 1, maxPageSize)
	return page, pageSize
}
