package anthropic

import "fmt"

// systemPrompt frames the model as a resume reviewer that only answers in JSON.
const systemPrompt = `You are an experienced technical recruiter and resume reviewer. You read resume text produced by OCR, which may contain broken lines, stray characters and lost formatting, and you return a faithful structured reading of it. You never invent facts that are not in the text. You always answer with a single JSON object and nothing else.`

// buildStructurePrompt creates the user prompt for structuring resume text
func buildStructurePrompt(text string) string {
	return fmt.Sprintf(`Structure the following resume text and assess how well it would pass an Applicant Tracking System (ATS).

**Extraction rules:**
- Copy names, employers, titles, dates and institutions exactly as written
- Split skills into technical skills (tools, languages, platforms, methods) and soft skills (communication, leadership, etc.)
- List achievements for each role separately; keep each one short
- Leave a field as an empty string or empty list when the text does not contain it
- If the text is clearly not a resume (an invoice, an article, a form), set "isResume" to false and leave the other fields empty

**Assessment rules:**
- "atsScore" is an integer from 0 to 100 reflecting keyword coverage, standard section headings, consistent dates and parseable formatting
- "strengths" and "areasForImprovement" each hold 2 to 6 concrete, specific points
- "keywords" holds the 10 to 25 terms an ATS would most likely match on

**Response Format:**
Return your answer as a JSON object with this exact structure:

{
  "contactInformation": {
    "name": "", "email": "", "phone": "", "location": "", "linkedin": "", "website": ""
  },
  "summary": "Two or three sentence professional summary",
  "skills": {
    "technical": ["..."],
    "soft": ["..."]
  },
  "workExperience": [
    {
      "title": "", "company": "", "location": "", "startDate": "", "endDate": "",
      "description": "",
      "achievements": ["..."]
    }
  ],
  "education": [
    { "degree": "", "institution": "", "field": "", "graduationDate": "", "gpa": "" }
  ],
  "certifications": ["..."],
  "projects": ["..."],
  "atsScore": 0,
  "strengths": ["..."],
  "areasForImprovement": ["..."],
  "keywords": ["..."],
  "isResume": true
}

**Important:** Return ONLY the JSON object, no additional text or explanation.

**Resume text:**
<resume>
%s
</resume>`, text)
}
