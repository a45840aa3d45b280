package solver

import (
	"reflect"
	"testing"
)

func TestSplitTranslations(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "single", raw: "pies", want: []string{"pies"}},
		{name: "comma", raw: "pies, piesek", want: []string{"pies", "piesek"}},
		{name: "semicolon and slash", raw: "pies; kundel/ogar", want: []string{"pies", "kundel", "ogar"}},
		{name: "parenthesized hint stripped", raw: "pies (zwierzę), kot", want: []string{"pies", "kot"}},
		{name: "double spaces collapsed", raw: "duży  pies,  mały kot", want: []string{"duży pies", "mały kot"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := SplitTranslations(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("SplitTranslations(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestGradeString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		g    Grade
		want string
	}{
		{GradeIncorrect, "incorrect"},
		{GradeCorrect, "correct"},
		{GradeSynonym, "synonym"},
		{GradeWrongCase, "wrong_case"},
		{GradeMistyped, "mistyped"},
		{Grade(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.g.String(); got != tt.want {
			t.Errorf("Grade(%d).String() = %q, want %q", tt.g, got, tt.want)
		}
	}
}
