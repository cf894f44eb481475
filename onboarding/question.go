// Package onboarding implements the onboarding questionnaire: the question
// catalog, conditional visibility of questions, per-session answer contracts,
// progress tracking and the mapping of answers to business entities.
package onboarding

import (
	"errors"
	"fmt"
	"slices"

	"github.com/youcodecowboy/disco-grid/contract"
)

// QuestionType describes the kind of answer a question expects.
type QuestionType string

const (
	QuestionTypeText         QuestionType = "text"
	QuestionTypeNumber       QuestionType = "number"
	QuestionTypeBoolean      QuestionType = "boolean"
	QuestionTypeSingleSelect QuestionType = "single_select"
	QuestionTypeMultiSelect  QuestionType = "multi_select"
)

// IsValid reports whether t is a known question type.
func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionTypeText, QuestionTypeNumber, QuestionTypeBoolean,
		QuestionTypeSingleSelect, QuestionTypeMultiSelect:
		return true
	}
	return false
}

// Errors returned when answering questions.
var (
	ErrUnknownQuestion = errors.New("unknown question")
	ErrQuestionHidden  = errors.New("question is not visible")
	ErrInvalidAnswer   = errors.New("invalid answer")
	ErrIncomplete      = errors.New("required questions unanswered")
)

// Question is a static onboarding question loaded from the catalog.
type Question struct {
	// ID uniquely identifies the question within the catalog.
	ID string `json:"id" yaml:"id"`

	// Prompt is the text shown to the user.
	Prompt string `json:"prompt" yaml:"prompt"`

	// Help is optional explanatory text.
	Help string `json:"help,omitempty" yaml:"help,omitempty"`

	// Type is the expected answer kind (defaults to text).
	Type QuestionType `json:"type" yaml:"type"`

	// Options lists the allowed answers for select questions.
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`

	// AnswerPath is the contract path the answer is written to.
	// Defaults to the question ID.
	AnswerPath string `json:"answerPath" yaml:"answerPath"`

	// Required questions must be answered (when visible) before completion.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`

	// Conditional optionally makes visibility depend on another answer.
	Conditional *Conditional `json:"conditional,omitempty" yaml:"conditional,omitempty"`

	// Section is the ID of the catalog section holding the question.
	Section string `json:"section,omitempty" yaml:"-"`
}

// Path returns the contract path the answer is stored under.
func (q *Question) Path() string {
	if q.AnswerPath != "" {
		return q.AnswerPath
	}
	return q.ID
}

// Answered reports whether the contract holds an answer for q.
// Empty arrays and empty strings do not count as answers.
func (q *Question) Answered(c *contract.Contract) bool {
	return c.Answered(q.Path())
}

// Validate checks an answer value against the question type.
func (q *Question) Validate(v contract.Value) error {
	switch q.Type {
	case QuestionTypeText, "":
		if _, ok := v.AsString(); !ok {
			return fmt.Errorf("%w: %s expects a string, got %s", ErrInvalidAnswer, q.ID, v.Kind())
		}
	case QuestionTypeNumber:
		if _, ok := v.AsNumber(); !ok {
			return fmt.Errorf("%w: %s expects a number, got %s", ErrInvalidAnswer, q.ID, v.Kind())
		}
	case QuestionTypeBoolean:
		if _, ok := v.AsBool(); !ok {
			return fmt.Errorf("%w: %s expects a boolean, got %s", ErrInvalidAnswer, q.ID, v.Kind())
		}
	case QuestionTypeSingleSelect:
		s, ok := v.AsString()
		if !ok {
			return fmt.Errorf("%w: %s expects one option, got %s", ErrInvalidAnswer, q.ID, v.Kind())
		}
		if !slices.Contains(q.Options, s) {
			return fmt.Errorf("%w: %q is not an option of %s", ErrInvalidAnswer, s, q.ID)
		}
	case QuestionTypeMultiSelect:
		if v.Kind() != contract.KindArray {
			return fmt.Errorf("%w: %s expects a list of options, got %s", ErrInvalidAnswer, q.ID, v.Kind())
		}
		for _, e := range v.Elems() {
			s, ok := e.AsString()
			if !ok || !slices.Contains(q.Options, s) {
				return fmt.Errorf("%w: %s is not an option of %s", ErrInvalidAnswer, e, q.ID)
			}
		}
	default:
		return fmt.Errorf("%w: unsupported question type %q", ErrInvalidAnswer, q.Type)
	}
	return nil
}
