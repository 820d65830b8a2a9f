// This file implements resume upload, analysis and history.
//
// Routes handled:
//   - POST /resume/upload        -> Upload
//   - POST /resume/process       -> Process
//   - POST /resume/analyze       -> Analyze
//   - GET  /resume/history       -> History
//   - GET  /resume/history/{id}  -> HistoryItem
package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/DukeRupert/resumezen/internal/auth"
	"github.com/DukeRupert/resumezen/internal/domain"
	"github.com/DukeRupert/resumezen/internal/service"
	"github.com/google/uuid"
)

// multipartOverhead is allowed on top of a rule's ceiling for multipart
// boundaries and form fields.
const multipartOverhead = 64 << 10

// multipartMemory is how much of a multipart body is buffered in memory.
const multipartMemory = 1 << 20

// ResumeHandlerConfig holds the upload ceilings.
type ResumeHandlerConfig struct {
	UploadMaxBytes      int64 // generic uploader, PDF/DOC/DOCX
	QuickUploadMaxBytes int64 // dashboard quick-analyze, PDF only
}

// ResumeHandler serves resume upload, analysis and history routes.
type ResumeHandler struct {
	analysis   service.AnalysisService
	uploads    service.UploadService
	history    service.HistoryService
	uploadRule domain.UploadRule
	quickRule  domain.UploadRule
	logger     *slog.Logger
}

// NewResumeHandler creates a new ResumeHandler.
func NewResumeHandler(
	analysis service.AnalysisService,
	uploads service.UploadService,
	history service.HistoryService,
	cfg ResumeHandlerConfig,
	logger *slog.Logger,
) *ResumeHandler {
	return &ResumeHandler{
		analysis:   analysis,
		uploads:    uploads,
		history:    history,
		uploadRule: domain.GenericUploadRule(cfg.UploadMaxBytes),
		quickRule:  domain.QuickUploadRule(cfg.QuickUploadMaxBytes),
		logger:     logger,
	}
}

// RegisterRoutes registers resume routes. throttle wraps the routes that
// start an analysis.
func (h *ResumeHandler) RegisterRoutes(mux *http.ServeMux, requireUser, throttle func(http.Handler) http.Handler) {
	mux.Handle("POST /resume/upload", requireUser(http.HandlerFunc(h.Upload)))
	mux.Handle("POST /resume/process", requireUser(throttle(http.HandlerFunc(h.Process))))
	mux.Handle("POST /resume/analyze", requireUser(throttle(http.HandlerFunc(h.Analyze))))
	mux.Handle("GET /resume/history", requireUser(http.HandlerFunc(h.History)))
	mux.Handle("GET /resume/history/{id}", requireUser(http.HandlerFunc(h.HistoryItem)))
}

// =============================================================================
// Response Types
// =============================================================================

type resumeScores struct {
	ATSScore            domain.ATSScore `json:"atsScore"`
	Strengths           domain.FlexList `json:"strengths"`
	AreasForImprovement domain.FlexList `json:"areasForImprovement"`
	Keywords            domain.FlexList `json:"keywords"`
}

type structuredView struct {
	ContactInformation domain.ContactInformation `json:"contactInformation"`
	Summary            string                    `json:"summary"`
	Skills             domain.Skills             `json:"skills"`
	WorkExperience     []domain.WorkExperience   `json:"workExperience"`
	Education          []domain.Education        `json:"education"`
	Certifications     domain.FlexList           `json:"certifications"`
	Projects           domain.FlexList           `json:"projects"`
	Analysis           resumeScores              `json:"analysis"`
}

type analysisBody struct {
	Structured structuredView `json:"structured"`
}

type analysisResponse struct {
	Extraction       *domain.Extraction       `json:"extraction"`
	Analysis         analysisBody             `json:"analysis"`
	ResumeAnalysisID uuid.UUID                `json:"resumeAnalysisId"`
	AttemptID        uuid.UUID                `json:"attemptId"`
	Validation       *domain.ResumeValidation `json:"validation"`
	Document         *domain.StoredDocument   `json:"document,omitempty"`
	UserPlan         *userPlanResponse        `json:"userPlan,omitempty"`
}

func toAnalysisResponse(out *service.AnalysisOutcome) analysisResponse {
	resp := analysisResponse{
		Extraction: out.Extraction,
		AttemptID:  out.AttemptID,
		Validation: out.Validation,
		Document:   out.Document,
		UserPlan:   toUserPlanResponse(out.UserPlan),
	}
	if out.Record != nil {
		resp.ResumeAnalysisID = out.Record.ID
	}
	if s := out.Structured; s != nil {
		resp.Analysis.Structured = structuredView{
			ContactInformation: s.ContactInformation,
			Summary:            s.Summary,
			Skills:             s.Skills,
			WorkExperience:     emptyIfNil(s.WorkExperience),
			Education:          emptyIfNil(s.Education),
			Certifications:     s.Certifications,
			Projects:           s.Projects,
			Analysis: resumeScores{
				ATSScore:            s.ATSScore,
				Strengths:           s.Strengths,
				AreasForImprovement: s.AreasForImprovement,
				Keywords:            s.Keywords,
			},
		}
	}
	return resp
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// =============================================================================
// Upload
// =============================================================================

// Upload stores a resume for a later /resume/process call.
func (h *ResumeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	doc, closeFn, err := h.readFile(w, r, h.uploadRule)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer closeFn()

	stored, err := h.uploads.Store(r.Context(), user.ID, h.uploadRule, *doc)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("resume uploaded",
		"user_id", user.ID,
		"public_id", stored.PublicID,
		"size", stored.Size,
	)
	writeJSON(w, http.StatusCreated, stored)
}

// =============================================================================
// Analysis
// =============================================================================

type processRequest struct {
	URL        string             `json:"url"`
	PublicID   string             `json:"publicId"`
	FileName   string             `json:"fileName"`
	OCROptions *domain.OCROptions `json:"ocrOptions"`
	AIModel    string             `json:"aiModel"`
}

// Process analyzes a document that is already reachable by URL or was
// stored by Upload.
func (h *ResumeHandler) Process(w http.ResponseWriter, r *http.Request) {
	const op = "ResumeHandler.Process"
	user := auth.GetUser(r.Context())

	var req processRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	req.PublicID = strings.TrimSpace(req.PublicID)
	if req.URL == "" && req.PublicID == "" {
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "url", "Provide the document URL or publicId"))
		return
	}
	params := service.AnalyzeParams{
		UserID:   user.ID,
		FileName: req.FileName,
		AIModel:  strings.TrimSpace(req.AIModel),
	}
	// A publicId wins over the URL: it resolves to the caller's own file.
	if req.PublicID != "" {
		params.PublicID = req.PublicID
	} else {
		params.DocumentURL = req.URL
	}
	if req.OCROptions != nil {
		params.OCROptions = *req.OCROptions
	}

	h.runAnalysis(w, r, params)
}

// Analyze is the dashboard quick-analyze: upload and analyze in one call.
func (h *ResumeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	doc, closeFn, err := h.readFile(w, r, h.quickRule)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	defer closeFn()

	opts := domain.DefaultOCROptions()
	if lang := strings.TrimSpace(r.FormValue("language")); lang != "" {
		opts.Language = lang
	}

	h.runAnalysis(w, r, service.AnalyzeParams{
		UserID:     user.ID,
		Document:   doc,
		Rule:       h.quickRule,
		OCROptions: opts,
		AIModel:    strings.TrimSpace(r.FormValue("aiModel")),
	})
}

func (h *ResumeHandler) runAnalysis(w http.ResponseWriter, r *http.Request, params service.AnalyzeParams) {
	out, err := h.analysis.Analyze(r.Context(), params)
	if err != nil {
		if out != nil {
			w.Header().Set("X-Attempt-Id", out.AttemptID.String())
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("X-Attempt-Id", out.AttemptID.String())
	writeJSON(w, http.StatusOK, toAnalysisResponse(out))
}

// readFile reads the "file" part of a multipart request. The body is
// capped just above rule's ceiling so an oversized upload is refused
// before it is buffered.
func (h *ResumeHandler) readFile(w http.ResponseWriter, r *http.Request, rule domain.UploadRule) (*domain.UploadedDocument, func(), error) {
	op := rule.Name + ".read"

	r.Body = http.MaxBytesReader(w, r.Body, rule.MaxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, domain.Errorf(domain.ETOOLARGE, op,
				"File exceeds the %d MB limit.", rule.MaxBytes/(1<<20))
		}
		return nil, nil, domain.Invalid(op, "Send the resume as multipart/form-data in a field named \"file\"")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, domain.NewValidationError(op, "file", "Choose a file to upload")
		}
		return nil, nil, domain.Invalid(op, "Failed to read the uploaded file")
	}

	return &domain.UploadedDocument{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, closeFile(file, r.MultipartForm), nil
}

func closeFile(file multipart.File, form *multipart.Form) func() {
	return func() {
		_ = file.Close()
		if form != nil {
			_ = form.RemoveAll()
		}
	}
}

// =============================================================================
// History
// =============================================================================

// History lists the user's analyses, most recent first. The total count
// is returned in X-Total-Count.
func (h *ResumeHandler) History(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())

	records, total, err := h.history.List(r.Context(), domain.ListAnalysesParams{
		UserID: user.ID,
		Limit:  queryInt32(r, "limit", 20),
		Offset: queryInt32(r, "offset", 0),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	writeJSON(w, http.StatusOK, records)
}

// HistoryItem returns one analysis.
func (h *ResumeHandler) HistoryItem(w http.ResponseWriter, r *http.Request) {
	const op = "ResumeHandler.HistoryItem"
	user := auth.GetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.NotFound(op, "analysis", r.PathValue("id")))
		return
	}

	record, err := h.history.Get(r.Context(), user.ID, id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}
