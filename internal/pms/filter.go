package pms

import "strings"

// Filter builds PMS filter expressions such as
// type='PATIENT' AND state='ACTIVE' AND phone='5551234567'.
type Filter struct {
	clauses []string
}

// NewFilter starts an empty filter.
func NewFilter() *Filter {
	return &Filter{}
}

func (f *Filter) Eq(field, value string) *Filter {
	return f.add(field, "=", value)
}

func (f *Filter) Gt(field, value string) *Filter {
	return f.add(field, ">", value)
}

func (f *Filter) Lt(field, value string) *Filter {
	return f.add(field, "<", value)
}

// add renders equality without spaces around "=" and comparisons with them,
// matching the forms the PMS documents.
func (f *Filter) add(field, op, value string) *Filter {
	sep := " " + op + " "
	if op == "=" {
		sep = op
	}
	f.clauses = append(f.clauses, field+sep+"'"+quote(value)+"'")
	return f
}

// String renders the clauses joined with AND.
func (f *Filter) String() string {
	return strings.Join(f.clauses, " AND ")
}

func quote(v string) string {
	return strings.ReplaceAll(v, "'", `\'`)
}
