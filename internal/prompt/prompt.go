// Package prompt turns extracted note text and a requested operation into the
// instruction sent to the completion provider.
package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingQuestion is returned when AnswerQuestion is requested without a question.
var ErrMissingQuestion = errors.New("missing question")

// MissingQuestionWarning is the user-facing text shown for ErrMissingQuestion.
const MissingQuestionWarning = "Please enter a question to get an answer."

// Kind identifies one of the supported transformations.
type Kind string

const (
	KindSummarize      Kind = "summarize"
	KindGenerateQA     Kind = "generate_qa"
	KindAnswerQuestion Kind = "answer_question"
)

// Operation is a requested transformation. Question is only meaningful for
// KindAnswerQuestion.
type Operation struct {
	Kind     Kind
	Question string
}

// Params are the generation settings used with an operation's prompt.
type Params struct {
	MaxTokens   int
	Temperature float32
}

const temperature float32 = 0.5

func Summarize() Operation { return Operation{Kind: KindSummarize} }

func GenerateQA() Operation { return Operation{Kind: KindGenerateQA} }

func AnswerQuestion(question string) Operation {
	return Operation{Kind: KindAnswerQuestion, Question: question}
}

// ParseKind accepts the wire names of the operations.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindSummarize, KindGenerateQA, KindAnswerQuestion:
		return k, nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}

// Validate reports operations that must not reach the provider.
func (o Operation) Validate() error {
	switch o.Kind {
	case KindSummarize, KindGenerateQA:
		return nil
	case KindAnswerQuestion:
		if strings.TrimSpace(o.Question) == "" {
			return ErrMissingQuestion
		}
		return nil
	default:
		return fmt.Errorf("unknown operation %q", o.Kind)
	}
}

func (o Operation) Params() Params {
	switch o.Kind {
	case KindGenerateQA:
		return Params{MaxTokens: 1000, Temperature: temperature}
	case KindAnswerQuestion:
		return Params{MaxTokens: 200, Temperature: temperature}
	default:
		return Params{MaxTokens: 300, Temperature: temperature}
	}
}

// Build renders the prompt for op over text. The whole text is always embedded;
// nothing is truncated.
func Build(text string, op Operation) string {
	switch op.Kind {
	case KindGenerateQA:
		return "Please generate Questions and Answers based on the following text:\n\n" + text
	case KindAnswerQuestion:
		return "Based on the following note, answer the question:\n\nNote:" + text + "\n\nQuestion: " + op.Question
	default:
		return "Please summarize the following text:\n\n" + text
	}
}
