// Package spelling converts phonetic letter names into spellings and grades
// them against a target word.
//
// Spoken input arrives as letter names ("bee", "eye", "gee"), either typed or
// produced by speech transcription. Decode maps each recognized name to its
// letter and ignores everything else, so filler words never corrupt the
// letters around them.
package spelling

import (
	"errors"
	"strings"
)

// ErrNoLetters is returned by Decode when the input contains no recognizable
// letter names at all.
var ErrNoLetters = errors.New("spelling: no letters recognized")

// letterNames maps spoken letter names to the letter they stand for.
// Multiple aliases per letter cover the common ways transcription renders
// them ("see"/"sea", "cue"/"queue"/"kew").
var letterNames = map[string]byte{
	"ay":  'a',
	"aye": 'a',

	"bee": 'b',
	"be":  'b',

	"see": 'c',
	"sea": 'c',

	"dee": 'd',
	"de":  'd',

	"ee": 'e',

	"eff": 'f',
	"ef":  'f',

	"gee": 'g',
	"jee": 'g',
	"je":  'g',

	"aitch": 'h',
	"ach":   'h',

	"eye": 'i',

	"jay": 'j',

	"kay": 'k',

	"el":  'l',
	"ell": 'l',

	"em": 'm',

	"en": 'n',

	"oh": 'o',

	"pee": 'p',
	"pe":  'p',

	"cue":   'q',
	"queue": 'q',
	"kew":   'q',

	"ar":  'r',
	"arr": 'r',

	"ess": 's',
	"es":  's',

	"tea": 't',
	"tee": 't',
	"te":  't',

	"you": 'u',

	"vee": 'v',
	"ve":  'v',

	"double-you": 'w',
	"double-u":   'w',
	"doubleyou":  'w',
	"doubleu":    'w',

	"ex":  'x',
	"eks": 'x',

	"why": 'y',
	"wye": 'y',

	"zed": 'z',
	"zee": 'z',
	"ze":  'z',
}

// Decode converts a phonetic phrase like "bee eye gee" into the spelling
// "big". Recognition is per token: known letter names map to their letter,
// bare single letters map to themselves, and anything else is skipped
// without affecting neighbouring tokens. The two-token form "double you"
// (or "double u") yields 'w'.
//
// Returns ErrNoLetters when no token decodes to a letter.
func Decode(phrase string) (string, error) {
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(phrase)))

	var b strings.Builder
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if tok == "double" && i+1 < len(tokens) {
			next := tokens[i+1]
			if next == "you" || next == "u" {
				b.WriteByte('w')
				i++
				continue
			}
		}

		if letter, ok := letterNames[tok]; ok {
			b.WriteByte(letter)
			continue
		}
		if len(tok) == 1 && tok[0] >= 'a' && tok[0] <= 'z' {
			b.WriteByte(tok[0])
		}
	}

	if b.Len() == 0 {
		return "", ErrNoLetters
	}
	return b.String(), nil
}
