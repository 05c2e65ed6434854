package http

import (
	"net/http"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/platform/logger"
)

// NewRouter mounts the websocket endpoint and the JSON API. admins lists the
// user ids allowed to advance or stop any group run.
func NewRouter(service *app.QuizService, log *logger.Logger, admins ...int64) http.Handler {
	ws := NewWSHandler(service, log, admins...)
	api := NewAPI(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", ws.ServeWS)
	mux.HandleFunc("POST /quizzes", api.HandleCreateQuiz)
	mux.HandleFunc("GET /quizzes", api.HandleListQuizzes)
	mux.HandleFunc("GET /quizzes/{quiz_id}", api.HandleGetQuiz)
	mux.HandleFunc("DELETE /quizzes/{quiz_id}", api.HandleDeleteQuiz)
	mux.HandleFunc("GET /quizzes/{quiz_id}/statistics", api.HandleQuizStatistics)
	mux.HandleFunc("GET /users/{user_id}/statistics", api.HandleUserStatistics)
	mux.HandleFunc("GET /users/{user_id}/history", api.HandleUserHistory)
	mux.HandleFunc("GET /groups/{chat_id}", api.HandleGroupSnapshot)
	return mux
}
