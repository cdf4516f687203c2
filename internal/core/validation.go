package core

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validateRecord checks a normalized record against the field rules and
// the schema identity. The first failing field is reported.
func (s *Service) validateRecord(schema *ImportSchema, rec Record) error {
	if isEmptyValue(rec[schema.Identity]) {
		return &ValidationError{Field: schema.Identity, Rule: "required"}
	}
	for _, f := range schema.Fields {
		if f.Rules == "" || f.Computed {
			continue
		}
		if err := s.validate.Var(rec[f.Name], f.Rules); err != nil {
			return &ValidationError{Field: f.Name, Rule: failedRule(err, f.Rules)}
		}
	}
	return nil
}

// failedRule returns the validator tag that rejected the value.
func failedRule(err error, rules string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Tag()
	}
	return strings.Split(rules, ",")[0]
}
