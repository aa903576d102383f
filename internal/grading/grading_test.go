package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromScoreBands(t *testing.T) {
	cases := []struct {
		score  int
		letter Letter
		point  float64
	}{
		{100, LetterA, 4.0},
		{90, LetterA, 4.0},
		{89, LetterB, 3.0},
		{80, LetterB, 3.0},
		{79, LetterC, 2.0},
		{70, LetterC, 2.0},
		{69, LetterD, 1.0},
		{60, LetterD, 1.0},
		{59, LetterF, 0.0},
		{0, LetterF, 0.0},
	}
	for _, tc := range cases {
		letter := FromScore(tc.score)
		assert.Equal(t, tc.letter, letter, "score %d", tc.score)
		assert.Equal(t, tc.point, Point(letter), "score %d", tc.score)
	}
}

func TestPointUnknownLetter(t *testing.T) {
	assert.Equal(t, 0.0, Point(Letter("X")))
}
