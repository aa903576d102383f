// Package grading holds the letter-grade band table and grade-point
// weights. It is the only place the bands are defined; callers must not
// duplicate them.
package grading

// Letter is a coarse grade band derived from a numeric score.
type Letter string

const (
	LetterA Letter = "A"
	LetterB Letter = "B"
	LetterC Letter = "C"
	LetterD Letter = "D"
	LetterF Letter = "F"
)

// FromScore maps a numeric score to its letter band. Boundaries are
// inclusive on the lower bound of each band.
func FromScore(score int) Letter {
	switch {
	case score >= 90:
		return LetterA
	case score >= 80:
		return LetterB
	case score >= 70:
		return LetterC
	case score >= 60:
		return LetterD
	}
	return LetterF
}

// Point returns the grade-point weight for a letter band. Unknown letters
// weigh 0.0, same as F.
func Point(letter Letter) float64 {
	switch letter {
	case LetterA:
		return 4.0
	case LetterB:
		return 3.0
	case LetterC:
		return 2.0
	case LetterD:
		return 1.0
	}
	return 0.0
}
