package collection

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAML schema definition files are used by the seed tool to stand up
// collections without the admin UI. The file shape mirrors the Question
// model one to one.

type schemaFile struct {
	Key       string         `yaml:"key"`
	Title     string         `yaml:"title"`
	Questions []questionFile `yaml:"questions"`
}

type questionFile struct {
	Key       string         `yaml:"key"`
	Label     string         `yaml:"label"`
	Section   string         `yaml:"section"`
	Type      string         `yaml:"type"`
	Required  bool           `yaml:"required"`
	Group     string         `yaml:"group"`
	Options   []optionFile   `yaml:"options"`
	Condition *conditionFile `yaml:"condition"`
}

type optionFile struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
}

type conditionFile struct {
	Question  string   `yaml:"question"`
	Predicate string   `yaml:"predicate"`
	Value     string   `yaml:"value"`
	Values    []string `yaml:"values"`
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
}

// ParseSchemaYAML decodes and validates a collection schema definition.
// Both decode failures and invariant violations surface as a SchemaError so
// a malformed file is rejected at load time, before any submission exists.
func ParseSchemaYAML(data []byte) (*Schema, error) {
	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &SchemaError{Problems: []string{fmt.Sprintf("decode yaml: %v", err)}}
	}

	questions := make([]Question, 0, len(file.Questions))
	for _, qf := range file.Questions {
		q := Question{
			Key:      qf.Key,
			Label:    qf.Label,
			Section:  qf.Section,
			Type:     QuestionType(qf.Type),
			Required: qf.Required,
			Group:    qf.Group,
		}
		for _, of := range qf.Options {
			q.Options = append(q.Options, Option{Key: of.Key, Label: of.Label})
		}
		if qf.Condition != nil {
			q.Condition = &Condition{
				Question:  qf.Condition.Question,
				Predicate: PredicateKind(qf.Condition.Predicate),
				Value:     qf.Condition.Value,
				Values:    qf.Condition.Values,
				Min:       qf.Condition.Min,
				Max:       qf.Condition.Max,
			}
		}
		questions = append(questions, q)
	}

	return NewSchema(file.Key, file.Title, questions)
}
