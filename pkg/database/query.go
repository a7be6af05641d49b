package database

import (
	"strconv"
	"strings"
)

// Offset converts a 1-based page into a row offset. Pages below 1 are
// treated as the first page.
func Offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}

// Assignments collects the columns of a partial UPDATE.
type Assignments struct {
	cols []string
	args []any
}

func (a *Assignments) Set(col string, v any) {
	a.cols = append(a.cols, col)
	a.args = append(a.args, v)
}

func (a *Assignments) Len() int { return len(a.cols) }

// Clause renders "col = $1, col2 = $2" and the matching args. Further
// placeholders start at len(args)+1.
func (a *Assignments) Clause() (string, []any) {
	parts := make([]string, len(a.cols))
	for i, c := range a.cols {
		parts[i] = c + " = $" + strconv.Itoa(i+1)
	}
	args := make([]any, len(a.args))
	copy(args, a.args)
	return strings.Join(parts, ", "), args
}
