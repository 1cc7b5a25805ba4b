package postgres

import (
	"strconv"
	"strings"
)

// where collects optional AND-combined conditions with positional arguments
// Condition uses '?' as the placeholder of its single argument
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(w.args)), 1))
}

// Placeholder for an argument that goes after conditions (LIMIT, OFFSET and so on)
func (w *where) next(arg any) string {
	w.args = append(w.args, arg)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}
