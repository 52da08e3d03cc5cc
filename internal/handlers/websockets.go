package handlers

import (
	"net/http"
	"time"

	"powersense/internal/models"
	"powersense/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
)

// Message types pushed over the live stream.
const (
	wsTypeRelays   = "relays"
	wsTypeTimers   = "timers"
	wsTypeReadings = "readings"
	wsTypeCost     = "cost"
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Upgrader for HTTP -> WebSocket. The stream is authenticated by token, not origin.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Live stream
// @Description  Pushes "relays", "timers", "readings" and "cost" envelopes whenever they change. Browsers may pass the token as ?token=.
// @Tags         stream
// @Param        token   query  string  false  "JWT when the Authorization header cannot be set"
// @Param        period  query  string  false  "Starts the polled cost estimate for this window"
// @Success      101
// @Failure      401  {object}  map[string]string
// @Router       /ws [get]
// @Security     BearerAuth
func (h *Handler) wsConnect(c *gin.Context) {
	uid := currentUser(c)

	var period service.CostPeriod
	if q := c.Query("period"); q != "" {
		p, ok := service.ParseCostPeriod(q)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown period"})
			return
		}
		period = p
	}

	// Load the mirror before subscribing so the first relay snapshot is populated.
	if _, err := h.services.Relays.Devices(c.Request.Context(), uid); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load relays", "ws_relays_failed", err, "user_id", uid)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine to handle control frames and detect disconnects.
	done := make(chan struct{})
	go h.startReader(conn, done)

	relays, cancelRelays := h.services.Relays.Subscribe(uid)
	timers, cancelTimers := h.services.Timers.Subscribe()
	readings, cancelReadings := h.services.Monitor.Subscribe()
	var costs <-chan service.CostUpdate
	cancelCosts := func() {}
	if h.services.Costs != nil {
		costs, cancelCosts = h.services.Costs.Subscribe(uid)
		if period != "" {
			h.services.Costs.StartPolling(uid, period)
		}
	}
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		cancelRelays()
		cancelTimers()
		cancelReadings()
		cancelCosts()
	}()

	if h.log != nil {
		h.log.Infow("ws_connected", "user_id", uid)
	}

	// Timers are keyed by device id across all users; only the caller's are forwarded.
	owned := map[string]struct{}{}
	var lastTimers map[string]models.TimerState

	for {
		var msg wsEnvelope
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
			continue
		case snap, ok := <-relays:
			if !ok {
				return
			}
			owned = deviceSet(snap)
			msg = wsEnvelope{Type: wsTypeRelays, Data: snap.Devices, Error: snap.Error}
			if lastTimers != nil {
				// Ownership may have changed; resend the filtered timers after the relays.
				if err := h.writeEnvelope(conn, msg); err != nil {
					return
				}
				msg = wsEnvelope{Type: wsTypeTimers, Data: filterTimers(lastTimers, owned)}
			}
		case all, ok := <-timers:
			if !ok {
				return
			}
			lastTimers = all
			msg = wsEnvelope{Type: wsTypeTimers, Data: filterTimers(all, owned)}
		case live, ok := <-readings:
			if !ok {
				return
			}
			msg = wsEnvelope{Type: wsTypeReadings, Data: live.ForWindow(h.services.Monitor.ChartHours(uid))}
		case up, ok := <-costs:
			if !ok {
				return
			}
			msg = wsEnvelope{Type: wsTypeCost, Data: up, Error: up.Error}
		}
		if err := h.writeEnvelope(conn, msg); err != nil {
			return
		}
	}
}

func (h *Handler) writeEnvelope(conn *websocket.Conn, msg wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed", "type", msg.Type, "err", err)
		}
		return err
	}
	return nil
}

// Helper: startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

func deviceSet(snap service.RelaySnapshot) map[string]struct{} {
	out := make(map[string]struct{}, len(snap.Devices))
	for _, d := range snap.Devices {
		out[d.ID] = struct{}{}
	}
	return out
}

func filterTimers(all map[string]models.TimerState, owned map[string]struct{}) map[string]models.TimerState {
	out := make(map[string]models.TimerState)
	for id, st := range all {
		if _, ok := owned[id]; ok {
			out[id] = st
		}
	}
	return out
}
