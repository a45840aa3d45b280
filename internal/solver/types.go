package solver

import (
	"regexp"
	"strings"
)

// Grade is the site's verdict for a submitted answer.
type Grade int

const (
	GradeIncorrect Grade = 0
	GradeCorrect   Grade = 1
	GradeSynonym   Grade = 2
	GradeWrongCase Grade = 3
	GradeMistyped  Grade = 4
)

func (g Grade) String() string {
	switch g {
	case GradeIncorrect:
		return "incorrect"
	case GradeCorrect:
		return "correct"
	case GradeSynonym:
		return "synonym"
	case GradeWrongCase:
		return "wrong_case"
	case GradeMistyped:
		return "mistyped"
	default:
		return "unknown"
	}
}

// Word is one prompt or graded answer from the site.
//
// Word and ShownAnswer are only populated on submit results; Type only on
// fetched prompts.
type Word struct {
	ID           int64
	Word         string
	ShownAnswer  string
	UsageExample string
	Translations string
	Type         string
	Grade        *Grade
}

var (
	parenRemover = regexp.MustCompile(`\s*\(.+?\)\s*`)
	doubleSpace  = regexp.MustCompile(`\s{2,}`)
)

// SplitTranslations breaks the site's free-form translation string into
// individual candidates. Parenthesized hints are stripped first.
func SplitTranslations(translations string) []string {
	cleaned := doubleSpace.ReplaceAllString(parenRemover.ReplaceAllString(translations, " "), " ")
	var out []string
	for _, s1 := range strings.Split(cleaned, ",") {
		for _, s2 := range strings.Split(s1, ";") {
			for _, t := range strings.Split(s2, "/") {
				out = append(out, strings.TrimSpace(t))
			}
		}
	}
	return out
}
