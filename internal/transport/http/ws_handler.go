package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/platform/logger"
)

type WSHandler struct {
	service  *app.QuizService
	log      *logger.Logger
	admins   map[int64]struct{}
	upgrader websocket.Upgrader
}

// NewWSHandler serves session websockets. Peer identity comes from the
// upstream gateway; admin rights are granted only to the listed user ids,
// never by the client.
func NewWSHandler(service *app.QuizService, log *logger.Logger, admins ...int64) *WSHandler {
	if log == nil {
		log = logger.NewNop()
	}
	allowed := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		allowed[id] = struct{}{}
	}
	return &WSHandler{
		service: service,
		log:     log,
		admins:  allowed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	QuizID    string `json:"quizId"`
	ShareCode string `json:"shareCode"`
	Mode      string `json:"mode"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Count     int    `json:"count"`
	Shuffle   *bool  `json:"shuffle"`
}

func (p startPayload) ref() app.QuizRef {
	if p.ShareCode != "" {
		return app.ByShareCode(p.ShareCode)
	}
	return app.ByID(p.QuizID)
}

type answerPayload struct {
	QuestionIndex int `json:"questionIndex"`
	Option        int `json:"option"`
}

type modePayload struct {
	Mode string `json:"mode"`
}

type inputPayload struct {
	Text string `json:"text"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type connectedPayload struct {
	Session string `json:"session"`
}

// client identifies the peer behind one connection.
type client struct {
	kind   app.SessionKind
	userID int64
	chatID int64
	actor  app.Actor
}

func (c client) key() app.SessionKey {
	if c.kind == app.KindGroup {
		return app.GroupKey(c.chatID)
	}
	return app.IndividualKey(c.userID)
}

func parseClient(r *http.Request) (client, error) {
	q := r.URL.Query()
	userID, err := strconv.ParseInt(q.Get("userId"), 10, 64)
	if err != nil {
		return client{}, errors.New("missing or invalid userId")
	}
	name := strings.TrimSpace(q.Get("name"))
	if name == "" {
		return client{}, errors.New("missing name")
	}
	c := client{
		kind:   app.KindIndividual,
		userID: userID,
		actor:  app.Actor{ID: userID, Name: name},
	}
	switch app.SessionKind(q.Get("kind")) {
	case "", app.KindIndividual:
	case app.KindGroup:
		c.kind = app.KindGroup
		if c.chatID, err = strconv.ParseInt(q.Get("chatId"), 10, 64); err != nil {
			return client{}, errors.New("missing or invalid chatId")
		}
	default:
		return client{}, errors.New("kind must be individual or group")
	}
	return c, nil
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// session use cases. Engine events for the session are forwarded as they
// are published; commands are answered in order.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	c, err := parseClient(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, c.actor.Admin = h.admins[c.userID]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	key := c.key()
	updates, cancel := h.service.Subscribe(key)
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write error", "session", key.String(), "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case ev, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: string(ev.Kind), Payload: ev}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	h.log.Debug("ws connected", "session", key.String(), "user", c.userID)
	send <- outboundMessage[any]{Type: "connected", Payload: connectedPayload{Session: key.String()}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var (
			typ     string
			payload any
		)
		if c.kind == app.KindGroup {
			typ, payload, err = h.handleGroup(r.Context(), c, inbound)
		} else {
			typ, payload, err = h.handleIndividual(r.Context(), c, inbound)
		}
		if err != nil {
			send <- errorMessage(err)
			continue
		}
		send <- outboundMessage[any]{Type: typ, Payload: payload}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

var errUnsupported = errors.New("unsupported message type")

func (h *WSHandler) handleIndividual(ctx context.Context, c client, in inboundMessage) (string, any, error) {
	switch in.Type {
	case "start":
		var p startPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		settings, err := p.settings()
		if err != nil {
			return "", nil, err
		}
		view, err := h.service.StartIndividual(ctx, c.userID, c.actor.Name, p.ref(), settings)
		return "started", view, err
	case "current":
		view, err := h.service.CurrentIndividual(c.userID)
		return "current", view, err
	case "answer":
		var p answerPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		out, err := h.service.AnswerIndividual(ctx, c.userID, p.QuestionIndex, p.Option)
		return "answerResult", out, err
	case "skip":
		var p answerPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		out, err := h.service.SkipIndividual(ctx, c.userID, p.QuestionIndex)
		return "answerResult", out, err
	case "stop":
		result, err := h.service.StopIndividual(ctx, c.userID)
		return "stopped", result, err
	case "statistics":
		stats, err := h.service.UserStatistics(ctx, c.userID)
		return "statistics", stats, err
	}
	return "", nil, errUnsupported
}

func (h *WSHandler) handleGroup(ctx context.Context, c client, in inboundMessage) (string, any, error) {
	switch in.Type {
	case "start", "restart":
		var p startPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		if in.Type == "restart" {
			status, err := h.service.RestartGroup(ctx, c.chatID, c.actor, p.ref())
			return "status", status, err
		}
		status, err := h.service.StartGroup(ctx, c.chatID, c.actor, p.ref())
		return "status", status, err
	case "mode":
		var p modePayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		mode, err := domain.ParseSelectionMode(p.Mode)
		if err != nil {
			return "", nil, err
		}
		status, err := h.service.ChooseGroupMode(ctx, c.chatID, c.actor, mode)
		return "status", status, err
	case "input":
		var p inputPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		status, err := h.service.GroupInput(ctx, c.chatID, c.actor, p.Text)
		return "status", status, err
	case "register":
		err := h.service.RegisterParticipant(c.chatID, c.actor.ID, c.actor.Name)
		return "registered", connectedPayload{Session: c.key().String()}, err
	case "answer":
		var p answerPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		out, err := h.service.AnswerGroup(ctx, c.chatID, c.actor, p.QuestionIndex, p.Option)
		return "answerResult", out, err
	case "next":
		var p answerPayload
		if err := decode(in.Payload, &p); err != nil {
			return "", nil, err
		}
		reveal, err := h.service.NextGroup(ctx, c.chatID, c.actor, p.QuestionIndex)
		return "advanced", reveal, err
	case "stop":
		board, err := h.service.StopGroup(ctx, c.chatID, c.actor)
		return "stopped", board, err
	case "snapshot":
		status, err := h.service.GroupSnapshot(c.chatID)
		return "status", status, err
	}
	return "", nil, errUnsupported
}

func (p startPayload) settings() (domain.RunSettings, error) {
	mode, err := domain.ParseSelectionMode(p.Mode)
	if err != nil {
		return domain.RunSettings{}, err
	}
	shuffle := true
	if p.Shuffle != nil {
		shuffle = *p.Shuffle
	}
	return domain.RunSettings{Mode: mode, Start: p.Start, End: p.End, Count: p.Count, Shuffle: shuffle}, nil
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errors.New("invalid payload")
	}
	return nil
}

// errorMessage maps engine rejections onto the wire. Expected races are
// reported as "retry" so clients refresh instead of surfacing an error.
func errorMessage(err error) outboundMessage[any] {
	if domain.IsRace(err) {
		return outboundMessage[any]{Type: "retry", Payload: errorPayload{Message: err.Error()}}
	}
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}

func parseBool(raw string) bool {
	v := strings.ToLower(strings.TrimSpace(raw))
	return v == "1" || v == "true" || v == "yes"
}
