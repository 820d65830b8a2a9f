// Package domain contains core business types and interfaces.
//
// This file defines the structured resume produced by the AI model, the
// persisted analysis record, and the resume validation verdict.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// =============================================================================
// Tolerant JSON Types
// =============================================================================

// ATSScore is an ATS compatibility score in 0..100. Models sometimes return
// the score as a string, a float, or "NA"; anything unparseable is treated
// as absent and rendered as "NA".
type ATSScore struct {
	Value int
	Valid bool
}

// NewATSScore returns a present score clamped to 0..100.
func NewATSScore(v int) ATSScore {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return ATSScore{Value: v, Valid: true}
}

// atsScoreFromFloat clamps before converting, since int() of a float
// outside the int range is implementation-defined. Non-finite input is NA.
func atsScoreFromFloat(f float64) ATSScore {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ATSScore{}
	}
	return NewATSScore(int(math.Round(math.Max(0, math.Min(100, f)))))
}

// String returns the score or "NA".
func (s ATSScore) String() string {
	if !s.Valid {
		return "NA"
	}
	return strconv.Itoa(s.Value)
}

// Ptr returns the score as a nullable int for storage.
func (s ATSScore) Ptr() *int {
	if !s.Valid {
		return nil
	}
	v := s.Value
	return &v
}

// MarshalJSON emits a number or "NA".
func (s ATSScore) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte(`"NA"`), nil
	}
	return []byte(strconv.Itoa(s.Value)), nil
}

// UnmarshalJSON accepts numbers, numeric strings, "NA" and null.
func (s *ATSScore) UnmarshalJSON(data []byte) error {
	*s = ATSScore{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*s = atsScoreFromFloat(f)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return nil
	}
	str = strings.TrimSuffix(strings.TrimSpace(str), "%")
	if i := strings.Index(str, "/"); i > 0 {
		str = str[:i]
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
		*s = atsScoreFromFloat(f)
	}
	return nil
}

// FlexList is a list of strings that also accepts a single string (split on
// newlines, bullets or semicolons) or an array with non-string items.
type FlexList []string

// MarshalJSON always emits an array.
func (l FlexList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// UnmarshalJSON accepts arrays, strings and null.
func (l *FlexList) UnmarshalJSON(data []byte) error {
	*l = nil
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var items []interface{}
	if err := json.Unmarshal(data, &items); err == nil {
		for _, item := range items {
			var s string
			switch v := item.(type) {
			case string:
				s = v
			case nil:
				continue
			case map[string]interface{}:
				s = firstStringValue(v)
			default:
				s = fmt.Sprint(v)
			}
			if s = cleanItem(s); s != "" {
				*l = append(*l, s)
			}
		}
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return nil
	}
	*l = splitList(str)
	return nil
}

func firstStringValue(m map[string]interface{}) string {
	for _, key := range []string{"name", "title", "value", "text"} {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	return ""
}

func splitList(s string) FlexList {
	sep := "\n"
	if !strings.Contains(s, "\n") {
		switch {
		case strings.Contains(s, ";"):
			sep = ";"
		case strings.Contains(s, "•"):
			sep = "•"
		case strings.Contains(s, ","):
			sep = ","
		}
	}
	var out FlexList
	for _, part := range strings.Split(s, sep) {
		if part = cleanItem(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func cleanItem(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "-*•· ")
	return strings.TrimSpace(s)
}

// Dedupe removes case-insensitive duplicates, keeping the first spelling.
func (l FlexList) Dedupe() FlexList {
	if len(l) == 0 {
		return l
	}
	folder := cases.Fold()
	seen := make(map[string]bool, len(l))
	out := make(FlexList, 0, len(l))
	for _, item := range l {
		key := folder.String(strings.TrimSpace(item))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// =============================================================================
// Structured Resume
// =============================================================================

// ContactInformation holds the candidate's contact details.
type ContactInformation struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
	LinkedIn string `json:"linkedin"`
	Website  string `json:"website"`
}

// IsEmpty returns true if no contact field was extracted.
func (c ContactInformation) IsEmpty() bool {
	return c == ContactInformation{}
}

// Skills splits extracted skills into technical and soft skills.
type Skills struct {
	Technical FlexList `json:"technical"`
	Soft      FlexList `json:"soft"`
}

// Count returns the total number of skills.
func (s Skills) Count() int {
	return len(s.Technical) + len(s.Soft)
}

// WorkExperience is one role from the work history.
type WorkExperience struct {
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Location     string   `json:"location"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
	Description  string   `json:"description"`
	Achievements FlexList `json:"achievements"`
}

// Education is one degree or course of study.
type Education struct {
	Degree         string `json:"degree"`
	Institution    string `json:"institution"`
	Field          string `json:"field"`
	GraduationDate string `json:"graduationDate"`
	GPA            string `json:"gpa"`
}

// StructuredResume is the AI model's reading of a resume. Every field is
// optional; absent values decode to zero values and the score to "NA".
type StructuredResume struct {
	ContactInformation  ContactInformation `json:"contactInformation"`
	Summary             string             `json:"summary"`
	Skills              Skills             `json:"skills"`
	WorkExperience      []WorkExperience   `json:"workExperience"`
	Education           []Education        `json:"education"`
	Certifications      FlexList           `json:"certifications"`
	Projects            FlexList           `json:"projects"`
	ATSScore            ATSScore           `json:"atsScore"`
	Strengths           FlexList           `json:"strengths"`
	AreasForImprovement FlexList           `json:"areasForImprovement"`
	Keywords            FlexList           `json:"keywords"`
	IsResume            *bool              `json:"isResume,omitempty"` // Model's own verdict, if given
}

// Normalize trims and deduplicates list fields in place.
func (r *StructuredResume) Normalize() {
	r.Summary = strings.TrimSpace(r.Summary)
	r.Skills.Technical = r.Skills.Technical.Dedupe()
	r.Skills.Soft = r.Skills.Soft.Dedupe()
	r.Keywords = r.Keywords.Dedupe()
	r.Strengths = r.Strengths.Dedupe()
	r.AreasForImprovement = r.AreasForImprovement.Dedupe()
	r.Certifications = r.Certifications.Dedupe()
	if r.WorkExperience == nil {
		r.WorkExperience = []WorkExperience{}
	}
	if r.Education == nil {
		r.Education = []Education{}
	}
}

// =============================================================================
// OCR
// =============================================================================

// OCROptions controls text extraction.
type OCROptions struct {
	Language          string `json:"language"`
	IsTable           bool   `json:"isTable"`
	Engine            int    `json:"engine"`
	Scale             bool   `json:"scale"`
	DetectOrientation bool   `json:"detectOrientation"`
}

// DefaultOCROptions returns English text extraction with engine 2.
func DefaultOCROptions() OCROptions {
	return OCROptions{Language: "eng", Engine: 2, Scale: true}
}

// WithDefaults fills unset fields from DefaultOCROptions.
func (o OCROptions) WithDefaults() OCROptions {
	d := DefaultOCROptions()
	if o.Language == "" {
		o.Language = d.Language
	}
	if o.Engine == 0 {
		o.Engine = d.Engine
	}
	return o
}

// Validate checks the options after defaults are applied.
func (o OCROptions) Validate() error {
	if o.Engine < 1 || o.Engine > 3 {
		return NewValidationError("ocr.options", "engine", "OCR engine must be 1, 2 or 3")
	}
	lang := strings.ToLower(o.Language)
	if lang != "auto" && (len(lang) != 3 || strings.IndexFunc(lang, func(r rune) bool { return r < 'a' || r > 'z' }) >= 0) {
		return NewValidationError("ocr.options", "language", "OCR language must be a three-letter code such as \"eng\"")
	}
	return nil
}

// Extraction is the text read from a document.
type Extraction struct {
	Text     string        `json:"text"`
	Pages    int           `json:"pages"`
	Language string        `json:"language"`
	Duration time.Duration `json:"-"`
}

// WordCount returns the number of whitespace-separated words.
func (e Extraction) WordCount() int {
	return len(strings.Fields(e.Text))
}

// =============================================================================
// Resume Validation
// =============================================================================

// ResumeValidation is the verdict on whether a document is a resume.
type ResumeValidation struct {
	IsResume bool     `json:"isResume"`
	Score    int      `json:"score"`
	Reasons  []string `json:"reasons"`
}

// =============================================================================
// Analysis Record
// =============================================================================

// AnalysisRecord is one completed analysis. Records are append-only.
type AnalysisRecord struct {
	ID            uuid.UUID        `json:"id"`
	UserID        uuid.UUID        `json:"userId"`
	UserPlanID    *uuid.UUID       `json:"userPlanId,omitempty"`
	AttemptID     uuid.UUID        `json:"attemptId"`
	DocumentURL   string           `json:"documentUrl"`
	DocumentKey   string           `json:"publicId,omitempty"`
	FileName      string           `json:"fileName,omitempty"`
	Structured    StructuredResume `json:"structured"`
	ATSScore      ATSScore         `json:"atsScore"`
	Summary       string           `json:"summary"`
	Keywords      []string         `json:"keywords"`
	ExtractedText string           `json:"extractedText,omitempty"`
	OCRLanguage   string           `json:"ocrLanguage"`
	OCROptions    *OCROptions      `json:"ocrOptions,omitempty"`
	AIModel       string           `json:"aiModel"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// ListAnalysesParams contains parameters for listing a user's history.
type ListAnalysesParams struct {
	UserID uuid.UUID
	Limit  int32
	Offset int32
}

// MaxHistoryPageSize caps history page size.
const MaxHistoryPageSize = 100

// Normalize clamps paging parameters.
func (p *ListAnalysesParams) Normalize() {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > MaxHistoryPageSize {
		p.Limit = MaxHistoryPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
}
