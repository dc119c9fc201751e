package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"aqua-guard/api/internal/storage"
	"aqua-guard/internal/inference"
	"aqua-guard/internal/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	defaultPointCount = 24
	maxPointCount     = 2000
	pingInterval      = 30 * time.Second
	writeWait         = 10 * time.Second
)

// OperatorSource is the read side of the data generator
type OperatorSource interface {
	GetCurrentState() model.DataPoint
	GetHistory(hours float64) []model.DataPoint
	GetLastNPoints(n int) []model.DataPoint
	GetSequenceForModel() [][]float64
	GetFeatureNames() []string
	DetectOperatorAnomaly(ctx context.Context) inference.Result
	Subscribe(buffer int) (<-chan model.DataPoint, func())
}

type Handlers struct {
	source   OperatorSource
	store    *storage.Storage
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

func NewHandlers(source OperatorSource, store *storage.Storage, logger *logrus.Logger) *Handlers {
	return &Handlers{
		source: source,
		store:  store,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins for development
				logger.Debugf("WebSocket origin check: %s", r.Header.Get("Origin"))
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Register mounts every route on router under /api/v1
func (h *Handlers) Register(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// Operator endpoints
	api.HandleFunc("/operator/state", h.GetOperatorState).Methods("GET")
	api.HandleFunc("/operator/history", h.GetOperatorHistory).Methods("GET")
	api.HandleFunc("/operator/points", h.GetOperatorPoints).Methods("GET")
	api.HandleFunc("/operator/sequence", h.GetSequence).Methods("GET")
	api.HandleFunc("/operator/features", h.GetFeatureNames).Methods("GET")
	api.HandleFunc("/anomaly/current", h.GetCurrentAnomaly).Methods("GET")
	api.HandleFunc("/stream/points", h.StreamPoints).Methods("GET")

	// Alerts endpoints
	api.HandleFunc("/alerts/timeline", h.GetAlertsTimeline).Methods("GET")
	api.HandleFunc("/alerts/stats", h.GetAlertStats).Methods("GET")
	api.HandleFunc("/stream/alerts", h.StreamAlerts).Methods("GET")
	api.HandleFunc("/alerts", h.GetAlerts).Methods("GET")
	api.HandleFunc("/alerts/{id}", h.GetAlert).Methods("GET")

	// Rules endpoints
	api.HandleFunc("/rules/stats", h.GetRulesStats).Methods("GET")
	api.HandleFunc("/rules", h.GetRules).Methods("GET")
	api.HandleFunc("/rules/{id}", h.GetRule).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")
}

// Operator handlers
func (h *Handlers) GetOperatorState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.GetCurrentState())
}

func (h *Handlers) GetOperatorHistory(w http.ResponseWriter, r *http.Request) {
	hours := 24.0
	if v := r.URL.Query().Get("hours"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "hours must be a positive number")
			return
		}
		hours = parsed
	}

	points := h.source.GetHistory(hours)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": points,
		"total": len(points),
		"hours": hours,
	})
}

func (h *Handlers) GetOperatorPoints(w http.ResponseWriter, r *http.Request) {
	n := defaultPointCount
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}
	if n > maxPointCount {
		n = maxPointCount
	}

	points := h.source.GetLastNPoints(n)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": points,
		"total": len(points),
	})
}

func (h *Handlers) GetSequence(w http.ResponseWriter, r *http.Request) {
	seq := h.source.GetSequenceForModel()
	cols := 0
	if len(seq) > 0 {
		cols = len(seq[0])
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sequence": seq,
		"shape":    []int{len(seq), cols},
	})
}

func (h *Handlers) GetFeatureNames(w http.ResponseWriter, r *http.Request) {
	names := h.source.GetFeatureNames()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"features": names,
		"count":    len(names),
	})
}

func (h *Handlers) GetCurrentAnomaly(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.source.DetectOperatorAnomaly(r.Context()))
}

// StreamPoints pushes every annotated data point to the client as it is produced
func (h *Handlers) StreamPoints(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.logger.Infof("WebSocket point stream opened from %s", r.RemoteAddr)

	points, unsubscribe := h.source.Subscribe(32)
	defer unsubscribe()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]interface{}{"type": "snapshot", "point": h.source.GetCurrentState()}); err != nil {
		h.logger.Debugf("Failed to send snapshot: %v", err)
		return
	}

	done := h.watchClose(conn)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			h.logger.Debugf("WebSocket point stream closed for %s", r.RemoteAddr)
			return
		case p, ok := <-points:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(map[string]interface{}{"type": "point", "point": p}); err != nil {
				h.logger.Debugf("WebSocket write error: %v", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debugf("Ping failed: %v", err)
				return
			}
		}
	}
}

// Alerts handlers
func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	q := r.URL.Query()
	alerts := h.store.GetAlerts(limit, storage.AlertFilter{
		Severity:  q.Get("severity"),
		Component: q.Get("component"),
		Type:      q.Get("type"),
	}, q.Get("search"))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": alerts,
		"total": len(alerts),
	})
}

func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	alert, ok := h.store.GetAlertByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

func (h *Handlers) GetAlertsTimeline(w http.ResponseWriter, r *http.Request) {
	var start, end time.Time
	var err error

	if v := r.URL.Query().Get("start"); v != "" {
		if start, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start time format")
			return
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if end, err = time.Parse(time.RFC3339, v); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end time format")
			return
		}
	}

	writeJSON(w, http.StatusOK, h.store.GetAlertsTimeline(start, end))
}

func (h *Handlers) GetAlertStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.GetAlertStats())
}

func (h *Handlers) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	q := r.URL.Query()
	sub := &storage.AlertSubscriber{
		ID:      uuid.NewString(),
		Channel: make(chan model.Alert, 100),
		Filter: storage.AlertFilter{
			Severity:  q.Get("severity"),
			Component: q.Get("component"),
			Type:      q.Get("type"),
		},
	}

	h.store.SubscribeAlerts(sub)
	defer h.store.UnsubscribeAlerts(sub)

	done := h.watchClose(conn)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case alert, ok := <-sub.Channel:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(alert); err != nil {
				h.logger.Errorf("WebSocket write error: %v", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Rules handlers
func (h *Handlers) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.GetRules())
}

func (h *Handlers) GetRule(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rule, ok := h.store.GetRuleByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Rule not found")
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

func (h *Handlers) GetRulesStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.GetRulesStats())
}

// watchClose drains client frames so pongs and close frames are processed.
// The returned channel closes when the client goes away.
func (h *Handlers) watchClose(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})

	conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	})

	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
