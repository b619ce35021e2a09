package collection

import (
	"errors"
	"testing"
)

const sampleYAML = `
key: village-hall
title: Village hall improvement fund
questions:
  - key: q_country
    label: Where is the project based?
    section: About
    type: single_choice
    required: true
    options:
      - key: uk
        label: United Kingdom
      - key: other
        label: Elsewhere
  - key: q_region
    label: Which region?
    section: About
    type: short_text
    required: true
    condition:
      question: q_country
      predicate: equals
      value: uk
  - key: q_budget
    label: Total budget
    section: Money
    type: number
    required: true
  - key: grp_access
    label: Accessibility
    section: Delivery
    type: group
    condition:
      question: q_budget
      predicate: greater_than
      min: 10000
  - key: q_access_plan
    label: Accessibility plan
    section: Delivery
    type: long_text
    required: true
    group: grp_access
`

func TestParseSchemaYAML(t *testing.T) {
	s, err := ParseSchemaYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("ParseSchemaYAML: %v", err)
	}
	if s.Key() != "village-hall" || s.Len() != 5 {
		t.Fatalf("unexpected schema: key=%q len=%d", s.Key(), s.Len())
	}

	q, ok := s.Question("q_region")
	if !ok || q.Condition == nil || q.Condition.Predicate != PredicateEquals || q.Condition.Value != "uk" {
		t.Fatalf("q_region condition not carried over: %+v", q)
	}

	grp, _ := s.Question("grp_access")
	if grp.Condition == nil || grp.Condition.Min == nil || *grp.Condition.Min != 10000 {
		t.Fatalf("group numeric condition not carried over: %+v", grp)
	}
}

func TestParseSchemaYAMLDecodeErrorIsSchemaError(t *testing.T) {
	_, err := ParseSchemaYAML([]byte("key: [broken"))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}

func TestParseSchemaYAMLInvariantViolation(t *testing.T) {
	_, err := ParseSchemaYAML([]byte(`
key: broken
title: Broken
questions:
  - key: a
    label: A
    type: short_text
    condition:
      question: b
      predicate: answered
  - key: b
    label: B
    type: short_text
`))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
}
