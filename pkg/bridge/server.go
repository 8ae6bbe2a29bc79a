// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/utmc-tools/xkopbridge/pkg/xkop"
)

// Server is the outward boundary of the bridge: the management
// pass-through reads and writes index values over HTTP, and live frame
// traffic is republished on a WebSocket feed.
type Server struct {
	bridge  *ValueBridge
	session *Session
	mapping Mapping
	codec   *xkop.Codec
	logger  zerolog.Logger
	started time.Time

	registry *prometheus.Registry
	upgrader websocket.Upgrader

	subMu sync.Mutex
	subs  map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewServer wires the HTTP boundary. registry may be the registry the
// Metrics were registered on; it backs the /metrics endpoint.
func NewServer(vb *ValueBridge, session *Session, mapping Mapping, codec *xkop.Codec, registry *prometheus.Registry, logger zerolog.Logger) *Server {
	return &Server{
		bridge:   vb,
		session:  session,
		mapping:  mapping,
		codec:    codec,
		logger:   logger,
		started:  time.Now(),
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  256,
			WriteBufferSize: 256,
			// The feed is consumed by the bridge's own CLI tools.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		subs: make(map[*wsClient]struct{}),
	}
}

// Router wires the HTTP routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /values", s.handleValues)
	mux.HandleFunc("GET /values/{index}", s.handleValueGet)
	mux.HandleFunc("POST /values/{index}", s.handleValueSet)
	mux.HandleFunc("GET /functions/{direction}/{function}", s.handleFunctionGet)
	mux.HandleFunc("POST /functions/{direction}/{function}", s.handleFunctionSet)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /diag", s.handleDiag)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func parseIndex(r *http.Request) (uint8, error) {
	raw := r.PathValue("index")
	n, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("index %q: must be 0-255", raw)
	}
	if uint8(n) == xkop.IndexUnused {
		return 0, fmt.Errorf("index 255 is reserved")
	}
	return uint8(n), nil
}

func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Snapshot())
}

func (s *Server) handleValueGet(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	entry, ok := s.bridge.Read(index)
	if !ok {
		// Never observed is distinct from explicitly zero.
		writeError(w, http.StatusNotFound, "index %d never observed", index)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type setRequest struct {
	Value uint16 `json:"value"`
}

func (s *Server) handleValueSet(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad body: %v", err)
		return
	}
	if err := s.bridge.Write(index, req.Value); err != nil {
		// The store holds the optimistic value; report the transmit
		// failure so the caller can retry.
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"index": index, "value": req.Value, "stored": true, "error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": index, "value": req.Value})
}

func (s *Server) handleFunctionGet(w http.ResponseWriter, r *http.Request) {
	direction := r.PathValue("direction")
	function := r.PathValue("function")
	scn := r.URL.Query().Get("scn")

	indices, bitmask := s.mapping.Resolve(direction, function, scn)
	if len(indices) == 0 {
		writeError(w, http.StatusNotFound, "%s/%s scn=%q not configured", direction, function, scn)
		return
	}
	if bitmask {
		writeJSON(w, http.StatusOK, map[string]any{"function": function, "scn": scn, "value": s.bridge.ReadMask(indices)})
		return
	}
	entry, ok := s.bridge.Read(indices[0])
	if !ok {
		writeError(w, http.StatusNotFound, "index %d never observed", indices[0])
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"function": function, "scn": scn, "value": entry.Value, "last_updated": entry.LastUpdated})
}

func (s *Server) handleFunctionSet(w http.ResponseWriter, r *http.Request) {
	direction := r.PathValue("direction")
	function := r.PathValue("function")
	scn := r.URL.Query().Get("scn")

	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad body: %v", err)
		return
	}

	indices, bitmask := s.mapping.Resolve(direction, function, scn)
	if len(indices) == 0 {
		writeError(w, http.StatusNotFound, "%s/%s scn=%q not configured", direction, function, scn)
		return
	}

	var err error
	if bitmask {
		err = s.bridge.WriteMask(indices, req.Value)
	} else {
		err = s.bridge.Write(indices[0], req.Value)
	}
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"function": function, "scn": scn, "stored": true, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"function": function, "scn": scn, "value": req.Value})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session":    s.session.State().String(),
		"last_frame": s.session.LastFrame(),
		"values":     s.bridge.Snapshot(),
	})
}

func (s *Server) handleDiag(w http.ResponseWriter, r *http.Request) {
	stats := s.session.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds":  time.Since(s.started).Seconds(),
		"session":         s.session.State().String(),
		"last_frame":      s.session.LastFrame(),
		"frames_total":    stats.TotalFrames,
		"frames_data":     stats.DataFrames,
		"frames_status":   stats.StatusFrames,
		"checksum_errors": stats.ChecksumErrors,
		"bytes_dropped":   stats.BytesDropped,
		"rows":            len(s.mapping.Rows()),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// The daemon is healthy even while the controller is unreachable;
	// consumers judge staleness from last_frame, not from liveness.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWS upgrades and attaches a subscriber to the binary frame feed.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &wsClient{conn: conn}
	s.subMu.Lock()
	s.subs[c] = struct{}{}
	n := len(s.subs)
	s.subMu.Unlock()
	s.logger.Info().Str("remote", conn.RemoteAddr().String()).Int("subscribers", n).Msg("feed subscriber attached")

	// Drain (and discard) client messages so pings are answered and
	// closes are noticed.
	go func() {
		defer s.detach(c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) detach(c *wsClient) {
	s.subMu.Lock()
	if _, ok := s.subs[c]; ok {
		delete(s.subs, c)
		c.conn.Close()
	}
	s.subMu.Unlock()
}

// Broadcast re-encodes a decoded message and fans the raw frame out to
// every feed subscriber. Intended as the session's OnMessage hook; a
// failed subscriber is dropped, never retried.
func (s *Server) Broadcast(msg xkop.Message) {
	frame, err := s.codec.Encode(msg.Type, msg.Records)
	if err != nil {
		return
	}

	s.subMu.Lock()
	clients := make([]*wsClient, 0, len(s.subs))
	for c := range s.subs {
		clients = append(clients, c)
	}
	s.subMu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		err := c.conn.WriteMessage(websocket.BinaryMessage, frame)
		c.mu.Unlock()
		if err != nil {
			s.detach(c)
		}
	}
}
