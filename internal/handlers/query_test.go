package handlers

import (
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestQueryParams(t *testing.T) {
	t.Run("empty values are not set", func(t *testing.T) {
		q := newQueryParams(url.Values{})

		require.Nil(t, q.UUID("user_id"))
		require.Nil(t, q.Time("created_after"))
		require.Nil(t, q.Decimal("min_balance"))
		require.Nil(t, q.OneOf("type", "transfer"))
		page, pageSize := q.Page()
		require.Equal(t, 1, page)
		require.Equal(t, defaultPageSize, pageSize)
		require.True(t, q.Valid())
	})

	t.Run("values parsed", func(t *testing.T) {
		id := uuid.New()
		q := newQueryParams(url.Values{
			"user_id":       {id.String()},
			"created_after": {"2025-01-02T10:00:00Z"},
			"min_balance":   {"10.50"},
			"type":          {"deposit"},
			"page":          {"3"},
			"page_size":     {"100"},
		})

		require.Equal(t, id, *q.UUID("user_id"))
		require.True(t, time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC).Equal(*q.Time("created_after")))
		require.Equal(t, "10.5", q.Decimal("min_balance").String())
		require.Equal(t, "deposit", *q.OneOf("type", "transfer", "deposit"))
		page, pageSize := q.Page()
		require.Equal(t, 3, page)
		require.Equal(t, 100, pageSize)
		require.True(t, q.Valid())
	})

	t.Run("errors collected per param", func(t *testing.T) {
		q := newQueryParams(url.Values{
			"user_id":   {"42"},
			"page":      {"first"},
			"page_size": {"0"},
		})

		q.UUID("user_id")
		q.Page()

		require.False(t, q.Valid())
		require.Equal(t, map[string]string{
			"user_id":   "Invalid UUID",
			"page":      "Invalid integer",
			"page_size": "Value is too small (minimum 1)",
		}, q.Errors())
	})
}
