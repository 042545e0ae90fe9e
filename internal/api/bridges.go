package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/maruel/natural"

	"github.com/nerrad567/gray-logic-dynalite/internal/bridges/dynalite"
)

// EntityResponse describes one bridge entity.
type EntityResponse struct {
	UniqueID  string            `json:"unique_id"`
	Name      string            `json:"name"`
	Category  dynalite.Category `json:"category"`
	Address   string            `json:"address"`
	Hidden    bool              `json:"hidden"`
	Available bool              `json:"available"`
	Area      string            `json:"area,omitempty"`
	State     map[string]any    `json:"state"`
}

// handleListBridges returns the metrics of every configured bridge.
func (s *Server) handleListBridges(w http.ResponseWriter, _ *http.Request) {
	bridges := make([]dynalite.BridgeMetrics, 0, len(s.bridges))
	for _, b := range s.bridges {
		bridges = append(bridges, b.Bridge.GetMetrics())
	}
	writeJSON(w, http.StatusOK, map[string]any{"bridges": bridges, "count": len(bridges)})
}

// handleListEntities returns a bridge's entities, naturally ordered by
// unique ID. The bridge is matched by name or by its topic segment.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	b, ok := s.findBridge(name)
	if !ok {
		writeNotFound(w, "bridge not found")
		return
	}

	entities := b.Entities()
	out := make([]EntityResponse, 0, len(entities))
	for _, e := range entities {
		out = append(out, EntityResponse{
			UniqueID:  e.UniqueID(),
			Name:      e.Name(),
			Category:  e.Category(),
			Address:   e.Key().String(),
			Hidden:    e.Hidden(),
			Available: e.Available(),
			Area:      e.HouseArea(),
			State:     e.State(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return natural.Less(out[i].UniqueID, out[j].UniqueID)
	})

	writeJSON(w, http.StatusOK, map[string]any{"entities": out, "count": len(out)})
}

func (s *Server) findBridge(name string) (Bridge, bool) {
	for _, b := range s.bridges {
		bn := b.Bridge.Name()
		if bn == name || dynalite.TopicSegment(bn) == name {
			return b.Bridge, true
		}
	}
	return nil, false
}
