package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/medhanag29/rural-classroom/pkg"
)

// Filter is a parsed query-by-example: column → accepted values. A column
// with one value is an equality test, several values an IN list.
type Filter map[string][]string

// FilterFields maps the JSON keys a client may filter on to SQL columns.
// Anything not listed is rejected, which keeps raw keys out of SQL.
type FilterFields map[string]string

// ParseFilter decodes the "query" parameter of a list endpoint:
//
//	{"course": "c1"}
//	{"lecture": {"$in": ["l1", "l2"]}, "from": "u1"}
//
// An empty string yields an empty filter.
func ParseFilter(raw string, fields FilterFields) (Filter, error) {
	f := Filter{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return f, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var obj map[string]json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: query must be a JSON object", pkg.ErrBadRequest)
	}

	for key, val := range obj {
		column, ok := fields[key]
		if !ok {
			return nil, fmt.Errorf("%w: cannot filter on %q", pkg.ErrBadRequest, key)
		}
		values, err := filterValues(val)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", pkg.ErrBadRequest, key, err)
		}
		f[column] = append(f[column], values...)
	}
	return f, nil
}

// Eq returns a copy of f with column restricted to value.
func (f Filter) Eq(column, value string) Filter {
	out := make(Filter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[column] = []string{value}
	return out
}

// Where renders the filter as a WHERE clause (empty for no filter) and its
// arguments. Columns are emitted in sorted order so the SQL is stable.
func (f Filter) Where() (string, []any) {
	if len(f) == 0 {
		return "", nil
	}

	columns := make([]string, 0, len(f))
	for c := range f {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	var (
		clauses []string
		args    []any
	)
	for _, c := range columns {
		values := f[c]
		switch len(values) {
		case 0:
			clauses = append(clauses, "0")
		case 1:
			clauses = append(clauses, c+" = ?")
			args = append(args, values[0])
		default:
			clauses = append(clauses, c+" IN ("+strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")+")")
			for _, v := range values {
				args = append(args, v)
			}
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func filterValues(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var op map[string][]json.RawMessage
		if err := json.Unmarshal(raw, &op); err != nil {
			return nil, fmt.Errorf("unsupported operator")
		}
		in, ok := op["$in"]
		if !ok || len(op) != 1 {
			return nil, fmt.Errorf("only $in is supported")
		}
		out := make([]string, 0, len(in))
		for _, item := range in {
			s, err := scalar(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	}

	s, err := scalar(raw)
	if err != nil {
		return nil, err
	}
	return []string{s}, nil
}

func scalar(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "1", nil
		}
		return "0", nil
	default:
		return "", fmt.Errorf("value must be a string or number")
	}
}
