package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/middleware"
	"github.com/gorilla/websocket"

	"github.com/j-veylop/credit-reset-dashboard/internal/logger"
	"github.com/j-veylop/credit-reset-dashboard/internal/models"
	"github.com/j-veylop/credit-reset-dashboard/internal/services"
	"github.com/j-veylop/credit-reset-dashboard/internal/services/scheduler"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 1024
)

// Event types sent over the stream.
const (
	EventAccountsChanged = "accounts.changed"
	EventRunFinished     = "run.finished"
	EventError           = "error"
)

// EventSource is the subscription side of services.Manager.
type EventSource interface {
	Subscribe() (chan services.ServiceEvent, tea.Cmd)
	Unsubscribe(ch chan services.ServiceEvent)
}

// EventMessage is one frame of the event stream.
type EventMessage struct {
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
	Type string    `json:"type"`
}

// AccountsChangedData is the payload of accounts.changed.
type AccountsChangedData struct {
	Accounts []models.AccountView `json:"accounts"`
}

// ErrorData is the payload of error.
type ErrorData struct {
	Service string `json:"service"`
	Message string `json:"message"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Local control API; clients are not browsers.
	CheckOrigin: func(*http.Request) bool { return true },
}

// EventStream pushes service events to websocket clients.
type EventStream struct {
	log    *slog.Logger
	source EventSource
	now    func() time.Time
}

// NewEventStream creates the handler for GET /api/v1/events.
func NewEventStream(log *slog.Logger, source EventSource) *EventStream {
	return &EventStream{log: logger.Or(log), source: source, now: time.Now}
}

// ServeHTTP upgrades the request and streams events until either side closes.
func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("op", "httpapi.Events"),
		slog.String("request_id", middleware.GetReqID(r.Context())))

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		log.Debug("websocket upgrade failed", logger.Err(err))
		return
	}
	defer ws.Close()

	ch, _ := s.source.Subscribe()
	defer s.source.Unsubscribe(ch)

	log.Debug("event stream opened")
	done := make(chan struct{})
	go readPump(ws, done)
	s.writePump(ws, ch, done, log)
	log.Debug("event stream closed")
}

// readPump discards client frames and closes done once the client goes away.
func readPump(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *EventStream) writePump(ws *websocket.Conn, ch <-chan services.ServiceEvent, done <-chan struct{}, log *slog.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-ch:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			msg, ok := s.message(event)
			if !ok {
				continue
			}
			data, err := json.Marshal(msg)
			if err != nil {
				log.Error("failed to encode event", logger.Err(err))
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

func (s *EventStream) message(event services.ServiceEvent) (EventMessage, bool) {
	msg := EventMessage{Time: s.now()}
	switch e := event.(type) {
	case services.AccountsChangedEvent:
		msg.Type, msg.Data = EventAccountsChanged, AccountsChangedData{Accounts: e.Accounts}
	case services.RunFinishedEvent:
		msg.Type, msg.Data = EventRunFinished, runFinishedData(e.Summary)
	case services.ErrorEvent:
		text := ""
		if e.Error != nil {
			text = e.Error.Error()
		}
		msg.Type, msg.Data = EventError, ErrorData{Service: e.Service, Message: text}
	default:
		return EventMessage{}, false
	}
	return msg, true
}

// RunFinishedData is the payload of run.finished.
type RunFinishedData struct {
	scheduler.RunSummary
	Level   models.AuditLevel `json:"level"`
	Message string            `json:"message"`
}

func runFinishedData(s scheduler.RunSummary) RunFinishedData {
	return RunFinishedData{RunSummary: s, Level: s.Level(), Message: s.Message()}
}
