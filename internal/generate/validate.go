package generate

import (
	"net/mail"
	"strconv"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

type fieldRule int

const (
	ruleNone fieldRule = iota
	ruleAge
	ruleEmail
)

// ruleFor matches by substring of the lowercase column name. Email is tested
// first so names like "manager_email" are treated as addresses.
func ruleFor(column string) fieldRule {
	lc := strings.ToLower(column)
	switch {
	case strings.Contains(lc, "email"):
		return ruleEmail
	case strings.Contains(lc, "age"):
		return ruleAge
	default:
		return ruleNone
	}
}

// Validator repairs rows in place. It never rejects a row.
type Validator struct {
	columns []string
	rules   []fieldRule
	faker   *gofakeit.Faker
}

// NewValidator resolves each column's rule once so Validate does no string work
// on column names.
func NewValidator(specs []ColumnSpec, f *gofakeit.Faker) *Validator {
	v := &Validator{
		columns: make([]string, len(specs)),
		rules:   make([]fieldRule, len(specs)),
		faker:   f,
	}
	for i, s := range specs {
		v.columns[i] = s.Name
		v.rules[i] = ruleFor(s.Name)
	}
	return v
}

// Validate fills absent columns with "" and replaces implausible ages and
// malformed email addresses with fresh generated values.
func (v *Validator) Validate(row Row) {
	for i, col := range v.columns {
		val := row[col]
		switch v.rules[i] {
		case ruleAge:
			if !validAge(val) {
				val = randomAge(v.faker)
			}
		case ruleEmail:
			if !validEmail(val) {
				val = v.faker.Email()
			}
		}
		row[col] = val
	}
}

// validAge accepts integers strictly between 0 and 120.
func validAge(s string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil && n > 0 && n < 120
}

// validEmail accepts a bare local@domain.tld address.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-2
}
