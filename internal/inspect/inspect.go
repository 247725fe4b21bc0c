// Package inspect implements the optional live module inspector behind the
// CLI's --watch flag: a websocket server that broadcasts a JSON snapshot of
// a module's shape after every successful build. Grounded on the teacher's
// internal/network websocket broadcast pattern (mutex-guarded client map,
// best-effort fan-out, a client considered dead once a write fails).
package inspect

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/madmann91/fir/internal/analysis"
	"github.com/madmann91/fir/internal/ir"
)

// Snapshot is the JSON shape broadcast to connected clients after a build.
type Snapshot struct {
	File        string       `json:"file"`
	NodeCount   int          `json:"node_count"`
	FuncCount   int          `json:"func_count"`
	GlobalCount int          `json:"global_count"`
	Functions   []FuncDigest `json:"functions"`
}

// FuncDigest summarizes one function's analyzed shape.
type FuncDigest struct {
	Name       string `json:"name"`
	BlockCount int    `json:"block_count"`
	MaxLoop    int    `json:"max_loop_depth"`
}

// Server holds the set of connected websocket clients and broadcasts
// snapshots to all of them. The zero value is not usable; construct with
// NewServer.
type Server struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
}

// NewServer returns an inspector server with no clients yet connected.
func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP upgrades the connection and registers it for future broadcasts.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	go func() {
		defer s.disconnect(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) disconnect(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// Broadcast sends snapshot as JSON to every connected client, dropping any
// client whose write fails.
func (s *Server) Broadcast(snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.disconnect(c)
		}
	}
	return nil
}

// BuildSnapshot builds the JSON-ready digest of mod's current shape, analyzing
// every function's CFG and loop forest to report its block and loop-depth
// counts.
func BuildSnapshot(file string, mod *ir.Module) Snapshot {
	snap := Snapshot{
		File:        file,
		NodeCount:   countNodes(mod),
		FuncCount:   len(mod.Funcs()),
		GlobalCount: len(mod.Globals()),
	}
	for _, fn := range mod.Funcs() {
		if fn.Body() == nil {
			continue
		}
		scope := analysis.BuildScope(fn)
		cfg := analysis.BuildCFG(scope)
		loop := analysis.BuildLoopForest(cfg)
		maxDepth := 0
		for _, b := range cfg.Blocks {
			if d := loop.Depth(b); d > maxDepth {
				maxDepth = d
			}
		}
		snap.Functions = append(snap.Functions, FuncDigest{
			Name:       fmt.Sprintf("%%%d", fn.ID()),
			BlockCount: len(cfg.Blocks),
			MaxLoop:    maxDepth,
		})
	}
	return snap
}

func countNodes(mod *ir.Module) int {
	count := len(mod.Funcs()) + len(mod.Globals())
	visited := make(map[*ir.Node]bool)
	var walk func(n *ir.Node)
	walk = func(n *ir.Node) {
		if n == nil || visited[n] {
			return
		}
		visited[n] = true
		count++
		for _, op := range n.Operands() {
			walk(op)
		}
	}
	for _, fn := range mod.Funcs() {
		walk(fn.Body())
	}
	for _, g := range mod.Globals() {
		walk(g.Init())
	}
	return count
}
