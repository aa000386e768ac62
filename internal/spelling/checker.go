package spelling

import (
	"context"
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/example/spellvox/pkg/provider/llm"
)

// Result is the outcome of grading one spelling attempt.
type Result struct {
	// IsCorrect reports whether the candidate matches the target word
	// exactly after trimming and lowercasing both sides.
	IsCorrect bool `json:"isCorrect"`

	// UserSpelling is the normalized candidate the attempt was graded on.
	UserSpelling string `json:"userSpelling"`

	// Feedback is a short tutor-style explanation of the result.
	Feedback string `json:"feedback"`

	// SoundsAlike is set on incorrect attempts whose candidate is
	// phonetically equivalent to the target ("kat" for "cat"). It is a
	// diagnostic flag only and never changes IsCorrect.
	SoundsAlike bool `json:"soundsAlike,omitempty"`
}

// Checker grades a candidate spelling against a target word. The candidate
// is a literal spelling ("colour"), not spoken letter names; callers holding
// a transcript run [Decode] first.
type Checker interface {
	Check(ctx context.Context, word, candidate string) (*Result, error)
}

// RuleChecker grades spellings with deterministic positional feedback: it
// reports a length difference or the first mismatched letter, then restates
// the correct spelling.
type RuleChecker struct{}

var _ Checker = RuleChecker{}

// Check implements Checker. It never fails; any candidate, including an
// empty one, gets a graded result.
func (RuleChecker) Check(_ context.Context, word, candidate string) (*Result, error) {
	return grade(word, candidate), nil
}

// grade normalizes both sides, compares the candidate against the target
// word, and builds the standard feedback message.
func grade(word, candidate string) *Result {
	word = strings.TrimSpace(word)
	spelled := strings.ToLower(strings.TrimSpace(candidate))
	target := strings.ToLower(word)
	if spelled == target {
		return &Result{
			IsCorrect:    true,
			UserSpelling: spelled,
			Feedback:     "Perfect! You spelled it correctly.",
		}
	}

	var b strings.Builder
	switch {
	case len(spelled) < len(target):
		fmt.Fprintf(&b, "Your spelling %q is missing %d letter(s). ", spelled, len(target)-len(spelled))
	case len(spelled) > len(target):
		fmt.Fprintf(&b, "Your spelling %q has %d extra letter(s). ", spelled, len(spelled)-len(target))
	default:
		fmt.Fprintf(&b, "Your spelling %q has the right number of letters but some are incorrect. ", spelled)
	}

	for i := 0; i < min(len(target), len(spelled)); i++ {
		if target[i] != spelled[i] {
			pos := i + 1
			fmt.Fprintf(&b, "The %d%s letter should be %q not %q.", pos, ordinalSuffix(pos), target[i:i+1], spelled[i:i+1])
			break
		}
	}

	fmt.Fprintf(&b, " The correct spelling is %q.", word)

	return &Result{
		UserSpelling: spelled,
		Feedback:     b.String(),
		SoundsAlike:  soundsAlike(spelled, target),
	}
}

// soundsAlike reports whether two spellings share a Double Metaphone code.
func soundsAlike(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	if ap == "" && as == "" {
		return false
	}
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || (bs != "" && x == bs) {
			return true
		}
	}
	return false
}

// ordinalSuffix returns the English ordinal suffix for n (1st, 2nd, 3rd, 4th).
func ordinalSuffix(n int) string {
	j, k := n%10, n%100
	switch {
	case j == 1 && k != 11:
		return "st"
	case j == 2 && k != 12:
		return "nd"
	case j == 3 && k != 13:
		return "rd"
	default:
		return "th"
	}
}

// tutorSystemPrompt frames the model as a spelling tutor for young learners.
const tutorSystemPrompt = "You are a friendly spelling tutor for children. " +
	"Given the target word, the child's attempted spelling, and whether it was correct, " +
	"reply with one or two short encouraging sentences of feedback. " +
	"Always include the correct spelling of the word. Do not use emoji."

// ModelChecker grades spellings deterministically but asks an LLM to phrase
// the feedback. Correctness and the sounds-alike flag always come from the
// same rules as RuleChecker; only the feedback text is model-generated. On
// model failure the deterministic feedback is kept, so a flaky backend never
// blocks grading.
type ModelChecker struct {
	provider llm.Provider
}

var _ Checker = (*ModelChecker)(nil)

// NewModelChecker returns a ModelChecker backed by the given LLM provider.
func NewModelChecker(provider llm.Provider) *ModelChecker {
	return &ModelChecker{provider: provider}
}

// Check implements Checker.
func (c *ModelChecker) Check(ctx context.Context, word, candidate string) (*Result, error) {
	res := grade(word, candidate)

	outcome := "incorrect"
	if res.IsCorrect {
		outcome = "correct"
	}
	prompt := fmt.Sprintf("Target word: %q\nChild's spelling: %q\nResult: %s", word, res.UserSpelling, outcome)

	resp, err := c.provider.Complete(ctx, llm.Request{
		System:    tutorSystemPrompt,
		Prompt:    prompt,
		MaxTokens: 80,
	})
	if err == nil && strings.TrimSpace(resp.Content) != "" {
		res.Feedback = strings.TrimSpace(resp.Content)
	}
	return res, nil
}
