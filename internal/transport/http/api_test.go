package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quiz-session-service/internal/domain"
)

func TestAPICreateListAndDeleteQuiz(t *testing.T) {
	router := NewRouter(newTestService(t), nil)

	body := map[string]any{
		"title":     "Colors",
		"ownerId":   42,
		"ownerName": "Ann",
		"ingestion": domain.IngestionResult{
			Success: true,
			Questions: []domain.Question{
				{Text: "Sky?", Options: []string{"Blue", "Green"}, CorrectIndex: 0},
			},
			Warnings: []string{"line 3 ignored"},
		},
	}
	rec := do(t, router, http.MethodPost, "/quizzes", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created createQuizResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if len(created.Quiz.ShareCode) != domain.ShareCodeLength || created.Quiz.Questions[0].ID != "q1" {
		t.Fatalf("unexpected quiz: %+v", created.Quiz)
	}
	if len(created.Warnings) != 1 {
		t.Fatalf("expected ingestion warnings to be passed back, got %v", created.Warnings)
	}

	rec = do(t, router, http.MethodGet, "/quizzes?ownerId=42", nil)
	var list []quizSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].ID != created.Quiz.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	rec = do(t, router, http.MethodGet, "/quizzes/"+created.Quiz.ShareCode+"?code=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup by share code status = %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/users/42/statistics", nil)
	var stats userStatisticsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode statistics: %v", err)
	}
	if stats.QuizzesCreated != 1 {
		t.Fatalf("expected quizzesCreated=1, got %+v", stats)
	}

	rec = do(t, router, http.MethodDelete, "/quizzes/"+created.Quiz.ID+"?ownerId=7", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delete by stranger status = %d", rec.Code)
	}
	rec = do(t, router, http.MethodDelete, "/quizzes/"+created.Quiz.ID+"?ownerId=42", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete by owner status = %d", rec.Code)
	}
	rec = do(t, router, http.MethodGet, "/quizzes/"+created.Quiz.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted quiz status = %d", rec.Code)
	}
}

func TestAPICreateQuizReportsEveryIssue(t *testing.T) {
	router := NewRouter(newTestService(t), nil)

	body := map[string]any{
		"ownerId": 1,
		"ingestion": domain.IngestionResult{
			Success: true,
			Questions: []domain.Question{
				{Text: "ok?", Options: []string{"a", "b"}, CorrectIndex: 0},
				{Text: "one option", Options: []string{"a"}, CorrectIndex: 0},
				{Text: "bad index", Options: []string{"a", "b"}, CorrectIndex: 5},
			},
		},
	}
	rec := do(t, router, http.MethodPost, "/quizzes", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Issues) != 2 || resp.Issues[0].Index != 1 || resp.Issues[1].Index != 2 {
		t.Fatalf("unexpected issues: %+v", resp.Issues)
	}
}

func TestAPINotFound(t *testing.T) {
	router := NewRouter(newTestService(t), nil)

	for _, path := range []string{"/users/9/statistics", "/quizzes/nope/statistics", "/groups/5"} {
		if rec := do(t, router, http.MethodGet, path, nil); rec.Code != http.StatusNotFound {
			t.Fatalf("GET %s status = %d", path, rec.Code)
		}
	}
	if rec := do(t, router, http.MethodGet, "/users/abc/history", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric user id status = %d", rec.Code)
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
