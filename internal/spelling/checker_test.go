package spelling

import (
	"context"
	"errors"
	"strings"
	"testing"

	llmmock "github.com/example/spellvox/pkg/provider/llm/mock"
)

func TestRuleCheckerCorrect(t *testing.T) {
	t.Parallel()

	res, err := RuleChecker{}.Check(context.Background(), "colour", "colour")
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsCorrect {
		t.Error("expected correct result")
	}
	if res.UserSpelling != "colour" {
		t.Errorf("UserSpelling = %q, want %q", res.UserSpelling, "colour")
	}
	if res.Feedback != "Perfect! You spelled it correctly." {
		t.Errorf("unexpected feedback: %q", res.Feedback)
	}
	if res.SoundsAlike {
		t.Error("SoundsAlike must not be set on correct results")
	}
}

func TestRuleCheckerNormalizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		word      string
		candidate string
	}{
		{"case insensitive", "Big", "BIG"},
		{"candidate whitespace", "cat", "  cat \n"},
		{"word whitespace", " cat ", "cat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := RuleChecker{}.Check(context.Background(), tt.word, tt.candidate)
			if err != nil {
				t.Fatal(err)
			}
			if !res.IsCorrect {
				t.Errorf("Check(%q, %q) graded incorrect", tt.word, tt.candidate)
			}
		})
	}
}

func TestRuleCheckerIncorrect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		word      string
		candidate string
		contains  []string
	}{
		{
			name:      "missing letters",
			word:      "colour",
			candidate: "color",
			contains:  []string{`is missing 1 letter(s)`, `The correct spelling is "colour".`},
		},
		{
			name:      "extra letters",
			word:      "cat",
			candidate: "cats",
			contains:  []string{`has 1 extra letter(s)`},
		},
		{
			name:      "wrong letter same length",
			word:      "cat",
			candidate: "kat",
			contains: []string{
				`has the right number of letters but some are incorrect`,
				`The 1st letter should be "c" not "k".`,
			},
		},
		{
			name:      "ordinal suffix",
			word:      "word",
			candidate: "wort",
			contains:  []string{`The 4th letter should be "d" not "t".`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := RuleChecker{}.Check(context.Background(), tt.word, tt.candidate)
			if err != nil {
				t.Fatal(err)
			}
			if res.IsCorrect {
				t.Fatal("expected incorrect result")
			}
			for _, want := range tt.contains {
				if !strings.Contains(res.Feedback, want) {
					t.Errorf("feedback %q missing %q", res.Feedback, want)
				}
			}
		})
	}
}

func TestRuleCheckerSoundsAlike(t *testing.T) {
	t.Parallel()

	res, err := RuleChecker{}.Check(context.Background(), "cat", "kat")
	if err != nil {
		t.Fatal(err)
	}
	if res.IsCorrect {
		t.Fatal("expected incorrect result")
	}
	if !res.SoundsAlike {
		t.Error(`"kat" should be flagged as sounding like "cat"`)
	}

	res, err = RuleChecker{}.Check(context.Background(), "cat", "dog")
	if err != nil {
		t.Fatal(err)
	}
	if res.SoundsAlike {
		t.Error(`"dog" must not be flagged as sounding like "cat"`)
	}
}

func TestOrdinalSuffix(t *testing.T) {
	t.Parallel()

	tests := map[int]string{
		1: "st", 2: "nd", 3: "rd", 4: "th",
		11: "th", 12: "th", 13: "th",
		21: "st", 22: "nd", 23: "rd",
	}
	for n, want := range tests {
		if got := ordinalSuffix(n); got != want {
			t.Errorf("ordinalSuffix(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestModelCheckerUsesModelFeedback(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{Content: "Great try! The correct spelling is cat."}
	c := NewModelChecker(provider)

	res, err := c.Check(context.Background(), "cat", "kat")
	if err != nil {
		t.Fatal(err)
	}
	if res.IsCorrect {
		t.Error("model feedback must not change correctness")
	}
	if res.UserSpelling != "kat" {
		t.Errorf("UserSpelling = %q, want %q", res.UserSpelling, "kat")
	}
	if res.Feedback != "Great try! The correct spelling is cat." {
		t.Errorf("feedback = %q, want model content", res.Feedback)
	}
	if provider.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1", provider.CallCount())
	}
}

func TestModelCheckerFallsBackOnError(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{Err: errors.New("backend down")}
	c := NewModelChecker(provider)

	res, err := c.Check(context.Background(), "cat", "cat")
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsCorrect {
		t.Error("expected correct result")
	}
	if res.Feedback != "Perfect! You spelled it correctly." {
		t.Errorf("expected deterministic fallback feedback, got %q", res.Feedback)
	}
}
