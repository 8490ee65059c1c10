package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"assessprep-service/internal/app"
)

var (
	errInvalidPayload     = errors.New("invalid payload")
	errUnsupportedMessage = errors.New("unsupported message type")
)

type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
	tick     time.Duration
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tick: time.Second,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string   `json:"questionId"`
	Values     []string `json:"values"`
}

type flagPayload struct {
	QuestionID string `json:"questionId"`
}

type jumpPayload struct {
	Index int `json:"index"`
}

type appealPayload struct {
	QuestionID string `json:"questionId"`
	Comment    string `json:"comment"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the
// session use cases. The connection owns the clock: a one-second ticker
// drives the session timers for as long as the socket is open, so a
// disconnected client's timers freeze until it reconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	quizID := r.URL.Query().Get("quizId")
	if sessionID == "" || quizID == "" {
		http.Error(w, "missing sessionId or quizId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()

	if _, err := h.service.Open(ctx, sessionID, quizID); err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	eng, err := h.service.Engine(ctx, sessionID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	updates, cancel := eng.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(h.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := h.service.Tick(ctx, sessionID); err != nil {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	trySend := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}
	sendError := func(err error) {
		trySend(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
	}

	// The subscription delivers the current snapshot first, so the client
	// gets its initial state frame without an explicit send here.
	var graders sync.WaitGroup

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			if _, err := h.service.Start(ctx, sessionID); err != nil {
				sendError(err)
			}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(errInvalidPayload)
				continue
			}
			if _, err := h.service.Answer(ctx, sessionID, payload.QuestionID, payload.Values); err != nil {
				sendError(err)
			}
		case "flag":
			var payload flagPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(errInvalidPayload)
				continue
			}
			if _, err := h.service.ToggleFlag(ctx, sessionID, payload.QuestionID); err != nil {
				sendError(err)
			}
		case "jump":
			var payload jumpPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(errInvalidPayload)
				continue
			}
			if _, err := h.service.Jump(ctx, sessionID, payload.Index); err != nil {
				sendError(err)
			}
		case "next":
			if _, err := h.service.Next(ctx, sessionID); err != nil {
				sendError(err)
			}
		case "prev":
			if _, err := h.service.Prev(ctx, sessionID); err != nil {
				sendError(err)
			}
		case "finish":
			if _, err := h.service.Finish(ctx, sessionID); err != nil {
				sendError(err)
				continue
			}
			if sum, err := h.service.Results(ctx, sessionID); err == nil {
				trySend(outboundMessage[any]{Type: "results", Payload: sum})
			}
		case "reset":
			if _, err := h.service.Reset(ctx, sessionID); err != nil {
				sendError(err)
			}
		case "results":
			sum, err := h.service.Results(ctx, sessionID)
			if err != nil {
				sendError(err)
				continue
			}
			trySend(outboundMessage[any]{Type: "results", Payload: sum})
		case "grade":
			// Model calls can take seconds; grade off the read loop so the
			// ticker and further commands keep flowing.
			graders.Add(1)
			go func() {
				defer graders.Done()
				if _, err := h.service.GradeAll(ctx, sessionID); err != nil {
					sendError(err)
					return
				}
				if sum, err := h.service.Results(ctx, sessionID); err == nil {
					trySend(outboundMessage[any]{Type: "results", Payload: sum})
				}
			}()
		case "appeal":
			var payload appealPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				sendError(errInvalidPayload)
				continue
			}
			graders.Add(1)
			go func() {
				defer graders.Done()
				if _, err := h.service.GradeOne(ctx, sessionID, payload.QuestionID, payload.Comment); err != nil {
					sendError(err)
					return
				}
				if sum, err := h.service.Results(ctx, sessionID); err == nil {
					trySend(outboundMessage[any]{Type: "results", Payload: sum})
				}
			}()
		default:
			sendError(errUnsupportedMessage)
		}
	}

	close(closeSignals)
	<-updatesDone
	graders.Wait()
	close(send)
	<-writerDone
}
