package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/platform/logger"
)

const defaultHistoryLimit = 10

// API serves quiz management and statistics over JSON.
type API struct {
	service *app.QuizService
	log     *logger.Logger
}

func NewAPI(service *app.QuizService, log *logger.Logger) *API {
	if log == nil {
		log = logger.NewNop()
	}
	return &API{service: service, log: log}
}

type createQuizRequest struct {
	Title           string                 `json:"title"`
	OwnerID         int64                  `json:"ownerId"`
	OwnerName       string                 `json:"ownerName"`
	TimePerQuestion *int                   `json:"timePerQuestion"`
	KeepOptionOrder bool                   `json:"keepOptionOrder"`
	Ingestion       domain.IngestionResult `json:"ingestion"`
}

type createQuizResponse struct {
	Quiz     domain.Quiz `json:"quiz"`
	Warnings []string    `json:"warnings"`
}

type quizSummary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	ShareCode       string `json:"shareCode"`
	QuestionCount   int    `json:"questionCount"`
	TimePerQuestion int    `json:"timePerQuestion"`
}

type userStatisticsResponse struct {
	domain.UserStatistics
	OverallAccuracy float64 `json:"overallAccuracy"`
}

type errorResponse struct {
	Error  string                 `json:"error"`
	Issues []domain.QuestionIssue `json:"issues,omitempty"`
}

func (a *API) HandleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	quiz, warnings, err := a.service.CreateQuiz(r.Context(), app.QuizDraft{
		Title:           req.Title,
		OwnerID:         req.OwnerID,
		OwnerName:       req.OwnerName,
		TimePerQuestion: req.TimePerQuestion,
		KeepOptionOrder: req.KeepOptionOrder,
	}, req.Ingestion)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	writeJSON(w, http.StatusCreated, createQuizResponse{Quiz: quiz, Warnings: warnings})
}

func (a *API) HandleListQuizzes(w http.ResponseWriter, r *http.Request) {
	ownerID, err := parseID(r.URL.Query().Get("ownerId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "ownerId must be an integer"})
		return
	}
	quizzes, err := a.service.ListQuizzes(r.Context(), ownerID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	items := make([]quizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		items = append(items, quizSummary{
			ID:              q.ID,
			Title:           q.Title,
			ShareCode:       q.ShareCode,
			QuestionCount:   len(q.Questions),
			TimePerQuestion: q.TimePerQuestion,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleGetQuiz resolves the path value as an id, or as a share code when
// the code query parameter is set.
func (a *API) HandleGetQuiz(w http.ResponseWriter, r *http.Request) {
	ref := app.ByID(strings.TrimSpace(r.PathValue("quiz_id")))
	if parseBool(r.URL.Query().Get("code")) {
		ref = app.ByShareCode(r.PathValue("quiz_id"))
	}
	quiz, err := a.service.LoadQuiz(r.Context(), ref)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (a *API) HandleDeleteQuiz(w http.ResponseWriter, r *http.Request) {
	ownerID, err := parseID(r.URL.Query().Get("ownerId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "ownerId must be an integer"})
		return
	}
	if err := a.service.DeleteQuiz(r.Context(), ownerID, r.PathValue("quiz_id")); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) HandleQuizStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.service.QuizStatistics(r.Context(), r.PathValue("quiz_id"))
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) HandleUserStatistics(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r.PathValue("user_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id must be an integer"})
		return
	}
	stats, err := a.service.UserStatistics(r.Context(), userID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userStatisticsResponse{UserStatistics: stats, OverallAccuracy: stats.OverallAccuracy()})
}

func (a *API) HandleUserHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(r.PathValue("user_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id must be an integer"})
		return
	}
	limit := defaultHistoryLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be an integer"})
			return
		}
	}
	history, err := a.service.UserHistory(r.Context(), userID, limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (a *API) HandleGroupSnapshot(w http.ResponseWriter, r *http.Request) {
	chatID, err := parseID(r.PathValue("chat_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "chat_id must be an integer"})
		return
	}
	status, err := a.service.GroupSnapshot(chatID)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var validation *domain.QuizValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "quiz is invalid", Issues: validation.Issues})
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrStatisticsNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidQuiz), errors.Is(err, domain.ErrInvalidSettings):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrNotAuthorized):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	default:
		a.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "request failed"})
	}
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
