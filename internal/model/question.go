package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates the supported question shapes.
type QuestionType string

const (
	// QuestionTypeSingle has a flat option list with one correct label.
	QuestionTypeSingle QuestionType = "SINGLE_ANSWER"
	// QuestionTypeMulti has a flat option list with several correct labels,
	// graded order-independently as a set.
	QuestionTypeMulti QuestionType = "MULTI_ANSWER"
	// QuestionTypeCompound carries a fixed set of true/false sub-items,
	// each graded on its own.
	QuestionTypeCompound QuestionType = "COMPOUND"
)

// CompoundSubItemCount is the required number of sub-items on a compound
// question. Questions with any other count are excluded from attempts.
const CompoundSubItemCount = 5

// SubItem is one boolean-graded statement of a compound question.
type SubItem struct {
	ID          uuid.UUID `json:"id"`
	Text        string    `json:"text"`
	Answer      bool      `json:"answer"`
	Explanation string    `json:"explanation,omitempty"`
}

// Question is a single question-bank entry. Immutable for the duration of an
// attempt cycle.
type Question struct {
	ID             uuid.UUID    `json:"id"`
	Module         string       `json:"module"`
	Category       string       `json:"category,omitempty"`
	SubCategory    string       `json:"sub_category,omitempty"`
	Prompt         string       `json:"prompt"`
	Explanation    string       `json:"explanation,omitempty"`
	Type           QuestionType `json:"type"`
	Options        []string     `json:"options,omitempty"`
	CorrectOptions []string     `json:"correct_options,omitempty"`
	SubItems       []SubItem    `json:"sub_items,omitempty"`
}

// SubItemForUser is an answer-stripped sub-item.
type SubItemForUser struct {
	ID   uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

// QuestionForUser is the user-facing question payload with correct answers
// and explanations removed.
type QuestionForUser struct {
	ID          uuid.UUID        `json:"id"`
	Category    string           `json:"category,omitempty"`
	SubCategory string           `json:"sub_category,omitempty"`
	Prompt      string           `json:"prompt"`
	Type        QuestionType     `json:"type"`
	Options     []string         `json:"options,omitempty"`
	SubItems    []SubItemForUser `json:"sub_items,omitempty"`
}

// ForUser strips grading data from a question.
func (q Question) ForUser() QuestionForUser {
	out := QuestionForUser{
		ID:          q.ID,
		Category:    q.Category,
		SubCategory: q.SubCategory,
		Prompt:      q.Prompt,
		Type:        q.Type,
		Options:     q.Options,
	}
	for _, sub := range q.SubItems {
		out.SubItems = append(out.SubItems, SubItemForUser{ID: sub.ID, Text: sub.Text})
	}
	return out
}

// ModulePayload is the cached, answer-stripped question set for a module.
type ModulePayload struct {
	Module    string            `json:"module"`
	Questions []QuestionForUser `json:"questions"`
}
