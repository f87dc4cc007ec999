package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vidyasagar-vadla/vidyasagar-vadla-smart-feedback-analysis-system/internal/models"
)

type questionSeeder interface {
	CountQuestions(ctx context.Context) (int, error)
	AddQuestion(ctx context.Context, q *models.Question) (int64, error)
}

// seedOptions accepts a YAML list or a single JSON/comma separated string.
type seedOptions []string

func (o *seedOptions) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*o = models.NormalizeOptions(list)
	case yaml.ScalarNode:
		*o = models.ParseOptions(value.Value)
	default:
		return fmt.Errorf("line %d: options must be a list or a string", value.Line)
	}
	return nil
}

type seedQuestion struct {
	Type    models.QuestionType `yaml:"type"`
	Text    string              `yaml:"text"`
	Options seedOptions         `yaml:"options"`
	Active  *bool               `yaml:"active"`
}

type seedFile struct {
	Questions []seedQuestion `yaml:"questions"`
}

func loadSeedFile(path string) ([]*models.Question, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	out := make([]*models.Question, 0, len(f.Questions))
	for i, sq := range f.Questions {
		if !sq.Type.Valid() {
			return nil, fmt.Errorf("seed question %d: unknown type %q", i+1, sq.Type)
		}
		if sq.Text == "" {
			return nil, fmt.Errorf("seed question %d: text is required", i+1)
		}
		active := true
		if sq.Active != nil {
			active = *sq.Active
		}
		out = append(out, &models.Question{Type: sq.Type, Text: sq.Text, Options: sq.Options, Active: active})
	}
	return out, nil
}

// SeedQuestionsIfEmpty loads the questions in path into an empty question
// table. An empty path or a populated table is a no-op.
func SeedQuestionsIfEmpty(ctx context.Context, store questionSeeder, path string) error {
	if path == "" {
		return nil
	}
	n, err := store.CountQuestions(ctx)
	if err != nil {
		return fmt.Errorf("count questions: %w", err)
	}
	if n > 0 {
		slog.Debug("Questions already present, skipping seed", "count", n)
		return nil
	}
	questions, err := loadSeedFile(path)
	if err != nil {
		return err
	}
	for _, q := range questions {
		if _, err := store.AddQuestion(ctx, q); err != nil {
			return fmt.Errorf("seed question %q: %w", q.Text, err)
		}
	}
	slog.Info("Seeded questions", "count", len(questions), "file", path)
	return nil
}
