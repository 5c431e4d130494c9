package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lacquerai/blockrt/internal/attr"
	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/value"
)

// HTTP Handlers

// blockView is the JSON-serializable snapshot of a single block's state.
type blockView struct {
	Name    string                 `json:"name"`
	Type    string                 `json:"type"`
	Status  string                 `json:"status"`
	Config  map[string]interface{} `json:"config"`
	Inputs  map[string]interface{} `json:"inputs"`
	Outputs map[string]interface{} `json:"outputs"`
}

func snapshotView(s *blockstate.State) blockView {
	view := blockView{
		Name:    s.Name,
		Type:    s.Type,
		Config:  attrsToMap(s.Config),
		Inputs:  attrsToMap(s.Inputs),
		Outputs: attrsToMap(s.Outputs),
	}
	if st, ok := s.Outputs.Get(blockstate.AttrStatus); ok {
		view.Status, _ = st.Value.AsString()
	}
	return view
}

func attrsToMap(c *attr.Container) map[string]interface{} {
	out := make(map[string]interface{})
	if c == nil {
		return out
	}
	for _, name := range c.Names() {
		a, ok := c.Get(name)
		if !ok {
			continue
		}
		out[name] = valueToJSON(a.Value)
	}
	return out
}

func valueToJSON(v value.Value) interface{} {
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	case value.KindInt:
		i, _ := v.AsInt()
		return i
	case value.KindFloat:
		f, _ := v.AsFloat()
		return f
	case value.KindString:
		s, _ := v.AsString()
		return s
	case value.KindSymbol:
		s, _ := v.AsString()
		return s
	case value.KindComposite:
		m, _ := v.AsComposite()
		out := make(map[string]interface{}, len(m))
		for k, inner := range m {
			out[k] = valueToJSON(inner)
		}
		return out
	case value.KindNotActive:
		return nil
	case value.KindNull:
		return nil
	default:
		return nil
	}
}

// listBlocks returns a summary of every registered block.
func (s *Server) listBlocks(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	blocks := make([]blockView, 0, len(names))
	for _, name := range names {
		a, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		blocks = append(blocks, snapshotView(a.Snapshot()))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"blocks": blocks,
		"count":  len(blocks),
	})
}

// getBlock returns a single block's current snapshot.
func (s *Server) getBlock(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	a, ok := s.registry.Get(name)
	if !ok {
		http.Error(w, fmt.Sprintf("block %q not found", name), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, snapshotView(a.Snapshot()))
}

// executeBlock manually triggers an off-cycle execution of a block (the
// manual exec method), the HTTP equivalent of a control-flow trigger.
func (s *Server) executeBlock(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if _, ok := s.registry.Get(name); !ok {
		http.Error(w, fmt.Sprintf("block %q not found", name), http.StatusNotFound)
		return
	}

	if err := s.registry.TriggerExecute(name, blockstate.ExecManual); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"block":       name,
		"exec_method": string(blockstate.ExecManual),
	})
}

// streamEvents upgrades to a WebSocket and streams runtime events for a
// single block until the client disconnects.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if _, ok := s.registry.Get(name); !ok {
		http.Error(w, fmt.Sprintf("block %q not found", name), http.StatusNotFound)
		return
	}
	if s.registry.Events == nil {
		http.Error(w, "event stream not enabled", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.registry.Events.Subscribe()
	defer s.registry.Events.Unsubscribe(sub)

	// Detect client-initiated close in the background; ReadMessage blocks
	// until the peer closes or errors.
	closed := make(chan struct{})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(closed)
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case e, ok := <-sub:
			if !ok {
				return
			}
			if e.Block != name {
				continue
			}
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

// healthCheck returns server health status
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"blocks":    len(s.registry.Names()),
		"timestamp": time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
