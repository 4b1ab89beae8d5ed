package types

import (
	"testing"
)

func TestContentRoundTripByType(t *testing.T) {
	cases := []struct {
		name    string
		ivType  InterventionType
		content Content
	}{
		{"break", InterventionBreak, BreakContent{Title: "Pause", DurationSeconds: 300}},
		{"quiz", InterventionQuiz, QuizContent{Title: "Check", Questions: []QuizQuestion{{Question: "q", Options: []string{"a", "b"}, CorrectAnswer: 1}}}},
		{"video", InterventionVideo, VideoContent{Title: "Watch", URL: "https://example.com/v"}},
		{"resource", InterventionResource, ResourceContent{Title: "Read", Resources: []ResourceLink{{Title: "r", URL: "https://example.com/r", Type: "article"}}}},
		{"reminder", InterventionReminder, PromptContent{Title: "Hey", Options: []string{"ok"}}},
		{"motivation", InterventionMotivation, PromptContent{Title: "Keep going"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := EncodeContent(tc.content)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			decoded, err := DecodeContent(tc.ivType, raw)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if decoded.ContentTitle() != tc.content.ContentTitle() {
				t.Fatalf("title = %q, want %q", decoded.ContentTitle(), tc.content.ContentTitle())
			}
		})
	}
}

func TestDecodeContentUnknownType(t *testing.T) {
	raw, err := EncodeContent(BreakContent{Title: "x"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeContent(InterventionType("nap"), raw); err == nil {
		t.Fatal("expected error for unknown intervention type")
	}
}

func TestDecodeContentEmpty(t *testing.T) {
	decoded, err := DecodeContent(InterventionBreak, nil)
	if err != nil || decoded != nil {
		t.Fatalf("DecodeContent(nil) = (%v, %v), want (nil, nil)", decoded, err)
	}
}

func TestEffectiveness(t *testing.T) {
	before, after := 0.3, 0.8
	iv := &Intervention{EngagementBefore: &before, EngagementAfter: &after}
	delta, ok := iv.Effectiveness()
	if !ok || delta != 0.5 {
		t.Fatalf("Effectiveness() = (%v, %v), want (0.5, true)", delta, ok)
	}

	partial := &Intervention{EngagementBefore: &before}
	if _, ok := partial.Effectiveness(); ok {
		t.Fatal("effectiveness should need both snapshots")
	}
}

func TestEmotionDataDefaults(t *testing.T) {
	s := &EngagementSample{}
	if got := s.EmotionData().Primary; got != "neutral" {
		t.Fatalf("empty emotion decoded to %q, want neutral", got)
	}

	raw, err := ToJSONB(Emotion{Primary: "confused", Confidence: 0.7})
	if err != nil {
		t.Fatalf("to jsonb: %v", err)
	}
	s.Emotion = raw
	if got := s.EmotionData().Primary; got != "confused" {
		t.Fatalf("decoded emotion = %q, want confused", got)
	}
}

func TestLearningResourceTagList(t *testing.T) {
	r := &LearningResource{Tags: "calculus, limits ,derivatives"}
	tags := r.TagList()
	want := []string{"calculus", "limits", "derivatives"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tags[%d] = %q, want %q", i, tags[i], want[i])
		}
	}
}
