// Package grader scores a cleaned transcript artifact set against a fixed
// rubric.
//
// The convergence loop treats the grader as opaque beyond the scalar score:
// it only compares scores across iterations, never interprets deductions.
// Deductions exist for humans reading the run summary.
package grader

import (
	"context"
)

// Artifact names the files produced by one clean pass. MappingPath and
// TagsPath may be empty; the corresponding rubric items then score zero.
type Artifact struct {
	// RawPath is the original source transcript, used for leak scanning.
	RawPath string

	// CleanedPath is the de-identified, numbered transcript text.
	CleanedPath string

	// MappingPath is the sensitive codes-to-originals mapping JSON.
	MappingPath string

	// TagsPath is the tag index CSV.
	TagsPath string
}

// Deduction is one itemized point loss.
type Deduction struct {
	Rubric string  `json:"rubric"`
	Points float64 `json:"points"`
	Reason string  `json:"reason"`
}

// Report is the outcome of grading one artifact set. Score is out of 100.
type Report struct {
	Score      float64     `json:"score"`
	Grade      string      `json:"grade"`
	Deductions []Deduction `json:"deductions,omitempty"`
}

// Grader is the abstraction over any transcript grading backend.
//
// Implementations must be safe for concurrent use: the loop grades
// different transcripts in parallel.
type Grader interface {
	Grade(ctx context.Context, artifact Artifact) (Report, error)
}

// LetterGrade converts a 0..1 fraction to the rubric's letter scale.
func LetterGrade(pct float64) string {
	switch {
	case pct >= 0.93:
		return "A"
	case pct >= 0.90:
		return "A-"
	case pct >= 0.87:
		return "B+"
	case pct >= 0.83:
		return "B"
	case pct >= 0.80:
		return "B-"
	case pct >= 0.77:
		return "C+"
	case pct >= 0.73:
		return "C"
	case pct >= 0.70:
		return "C-"
	case pct >= 0.67:
		return "D+"
	case pct >= 0.60:
		return "D"
	default:
		return "F"
	}
}
