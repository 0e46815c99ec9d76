package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	jobIDPattern       = regexp.MustCompile(`^job_[a-z0-9]+$`)
	eventIDPattern     = regexp.MustCompile(`^evt_job_[a-z0-9]+_\d{4}$`)
	structureIDPattern = regexp.MustCompile(`^str_job_[a-z0-9]+_\w+$`)
	sequencePattern    = regexp.MustCompile(`^[A-Z]+$`)
)

const aminoAcidAlphabet = "ACDEFGHIKLMNPQRSTVWY"

// NewJobID mints a fresh job_<lowercase-alphanumeric> identifier.
func NewJobID() string {
	return "job_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidJobID reports whether id matches the strict job-id regex
// required at every entry point.
func ValidJobID(id string) bool {
	return jobIDPattern.MatchString(id)
}

// EventID formats the ordered evt_<job_id>_<4-digit-sequence> identifier.
func EventID(jobID string, seq int) string {
	return fmt.Sprintf("evt_%s_%04d", jobID, seq)
}

// ValidEventID reports whether id matches the event-id regex.
func ValidEventID(id string) bool {
	return eventIDPattern.MatchString(id)
}

// StructureID formats the str_<job_id>_<ordinal> identifier.
func StructureID(jobID string, ordinal int) string {
	return fmt.Sprintf("str_%s_%d", jobID, ordinal)
}

// ValidStructureID reports whether id matches the structure-id regex.
func ValidStructureID(id string) bool {
	return structureIDPattern.MatchString(id)
}

// NormalizeSequence uppercases and strips whitespace from a raw client
// supplied sequence, the way the create-job handler must before
// validating it.
func NormalizeSequence(raw string) string {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidateSequence checks the 10-5000 length bound and the standard
// 20-amino-acid alphabet, returning human-readable violations.
func ValidateSequence(seq string) []string {
	var problems []string
	if l := len(seq); l < 10 || l > 5000 {
		problems = append(problems, fmt.Sprintf("sequence length %d is out of range [10,5000]", l))
	}
	if !sequencePattern.MatchString(seq) {
		problems = append(problems, "sequence must contain only uppercase letters")
	} else {
		for _, r := range seq {
			if !strings.ContainsRune(aminoAcidAlphabet, r) {
				problems = append(problems, fmt.Sprintf("sequence contains non-amino-acid character %q", r))
				break
			}
		}
	}
	return problems
}
