package types

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// Content is the per-type intervention payload. Each intervention type has
// its own statically-known shape; DecodeContent picks the shape from the
// intervention type rather than sniffing the JSON.
type Content interface {
	ContentTitle() string
	ContentDescription() string
}

type BreakContent struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	DurationSeconds int    `json:"durationSeconds"`
}

func (c BreakContent) ContentTitle() string       { return c.Title }
func (c BreakContent) ContentDescription() string { return c.Description }

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	UserAnswer    *int     `json:"userAnswer,omitempty"`
}

type QuizContent struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Questions   []QuizQuestion `json:"questions"`
	Score       *float64       `json:"score,omitempty"`
}

func (c QuizContent) ContentTitle() string       { return c.Title }
func (c QuizContent) ContentDescription() string { return c.Description }

type VideoContent struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	URL             string `json:"url"`
	DurationSeconds int    `json:"durationSeconds"`
}

func (c VideoContent) ContentTitle() string       { return c.Title }
func (c VideoContent) ContentDescription() string { return c.Description }

type ResourceLink struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Type        string `json:"type"`
}

type ResourceContent struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Resources   []ResourceLink `json:"resources"`
}

func (c ResourceContent) ContentTitle() string       { return c.Title }
func (c ResourceContent) ContentDescription() string { return c.Description }

// PromptContent backs reminder and motivation interventions: a short
// check-in with canned reply options.
type PromptContent struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []string `json:"options,omitempty"`
}

func (c PromptContent) ContentTitle() string       { return c.Title }
func (c PromptContent) ContentDescription() string { return c.Description }

func EncodeContent(c Content) (datatypes.JSON, error) {
	if c == nil {
		return nil, nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func DecodeContent(t InterventionType, raw datatypes.JSON) (Content, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch t {
	case InterventionBreak:
		var c BreakContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case InterventionQuiz:
		var c QuizContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case InterventionVideo:
		var c VideoContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case InterventionResource:
		var c ResourceContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	case InterventionReminder, InterventionMotivation:
		var c PromptContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown intervention type %q", t)
}
