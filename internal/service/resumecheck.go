package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/DukeRupert/resumezen/internal/domain"
)

// DefaultResumeThreshold is the minimum score for a document to count as a resume.
const DefaultResumeThreshold = 40

// Signal weights. They sum to 100.
const (
	weightPerSection  = 6
	maxSectionWeight  = 30
	weightEmail       = 10
	weightPhone       = 6
	weightLinkedIn    = 4
	weightDatesMany   = 14
	weightDatesOne    = 7
	weightLength      = 10
	weightLengthShort = 5
	weightExperience  = 10
	weightEducation   = 6
	weightSkills      = 6
	weightName        = 4

	// penaltyModelVerdict applies when the model says the text is not a resume.
	penaltyModelVerdict = 30
)

var (
	emailPattern    = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	phonePattern    = regexp.MustCompile(`\+?\(?\d{1,4}\)?[\s.\-]?\d{2,4}[\s.\-]\d{3,4}(?:[\s.\-]\d{2,4})?`)
	linkedInPattern = regexp.MustCompile(`(?i)linkedin\.com/`)

	month            = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+`
	dateRangePattern = regexp.MustCompile(`(?i)(?:` + month + `)?(?:\d{1,2}/)?(?:19|20)\d{2}\s*(?:-|–|—|to)\s*(?:` + month + `)?(?:\d{1,2}/)?(?:(?:19|20)\d{2}|present|current|now)`)
)

// resumeSections maps a section to the headings that introduce it.
var resumeSections = map[string][]string{
	"experience":     {"experience", "work experience", "professional experience", "employment", "employment history", "work history", "career history"},
	"education":      {"education", "academic background", "qualifications", "academic qualifications"},
	"skills":         {"skills", "technical skills", "core competencies", "competencies", "key skills", "expertise"},
	"summary":        {"summary", "professional summary", "profile", "objective", "career objective", "about me"},
	"projects":       {"projects", "selected projects", "personal projects"},
	"certifications": {"certifications", "certificates", "licenses", "licenses & certifications", "awards"},
}

// ResumeChecker decides whether extracted text is a resume. It combines
// layout signals from the raw text with what the model managed to extract.
type ResumeChecker struct {
	Threshold int
}

// NewResumeChecker creates a checker. threshold <= 0 uses DefaultResumeThreshold.
func NewResumeChecker(threshold int) *ResumeChecker {
	if threshold <= 0 {
		threshold = DefaultResumeThreshold
	}
	return &ResumeChecker{Threshold: threshold}
}

// Check scores the document from 0 to 100 and lists every signal that was
// missing.
func (c *ResumeChecker) Check(text string, structured domain.StructuredResume) domain.ResumeValidation {
	var (
		score   int
		reasons []string
	)

	sections := findSections(text)
	sectionScore := len(sections) * weightPerSection
	if sectionScore > maxSectionWeight {
		sectionScore = maxSectionWeight
	}
	score += sectionScore
	if len(sections) == 0 {
		reasons = append(reasons, "No resume section headings (experience, education, skills) were found.")
	} else if !sections["experience"] && !sections["education"] {
		reasons = append(reasons, "Neither an experience nor an education section was found.")
	}

	hasContact := false
	if emailPattern.MatchString(text) || structured.ContactInformation.Email != "" {
		score += weightEmail
		hasContact = true
	}
	if phonePattern.MatchString(text) || structured.ContactInformation.Phone != "" {
		score += weightPhone
		hasContact = true
	}
	if linkedInPattern.MatchString(text) || structured.ContactInformation.LinkedIn != "" {
		score += weightLinkedIn
	}
	if !hasContact {
		reasons = append(reasons, "No contact details (email or phone) were found.")
	}

	switch n := len(dateRangePattern.FindAllStringIndex(text, -1)); {
	case n >= 2:
		score += weightDatesMany
	case n == 1:
		score += weightDatesOne
	default:
		reasons = append(reasons, "No employment or study date ranges were found.")
	}

	switch words := len(strings.Fields(text)); {
	case words >= 150 && words <= 2500:
		score += weightLength
	case words >= 60 && words < 150:
		score += weightLengthShort
	case words < 60:
		reasons = append(reasons, fmt.Sprintf("The document is very short (%d words).", words))
	default:
		reasons = append(reasons, fmt.Sprintf("The document is unusually long for a resume (%d words).", words))
	}

	if len(structured.WorkExperience) > 0 {
		score += weightExperience
	} else {
		reasons = append(reasons, "No work experience entries could be extracted.")
	}
	if len(structured.Education) > 0 {
		score += weightEducation
	}
	if structured.Skills.Count() >= 3 {
		score += weightSkills
	} else {
		reasons = append(reasons, "Fewer than three skills could be extracted.")
	}
	if structured.ContactInformation.Name != "" {
		score += weightName
	}

	if structured.IsResume != nil && !*structured.IsResume {
		score -= penaltyModelVerdict
		reasons = append(reasons, "The document content reads as something other than a resume.")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	isResume := score >= c.Threshold
	if isResume {
		reasons = nil
	}
	if reasons == nil {
		reasons = []string{}
	}

	return domain.ResumeValidation{
		IsResume: isResume,
		Score:    score,
		Reasons:  reasons,
	}
}

// findSections returns the sections whose heading appears on its own line.
func findSections(text string) map[string]bool {
	found := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		heading := strings.ToLower(strings.TrimSpace(line))
		heading = strings.TrimRight(heading, ":-– ")
		if heading == "" || len(heading) > 40 {
			continue
		}
		for section, names := range resumeSections {
			if found[section] {
				continue
			}
			for _, name := range names {
				if heading == name {
					found[section] = true
					break
				}
			}
		}
	}
	return found
}
