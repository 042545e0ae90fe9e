package api

import (
	"net/http"
	"sort"

	"github.com/maruel/natural"
)

// handleListAreas returns all house areas, naturally ordered by name so
// that "Area 2" sorts before "Area 10".
func (s *Server) handleListAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := s.areas.ListAreas(r.Context())
	if err != nil {
		s.logger.Error("listing areas", "error", err)
		writeInternalError(w, "failed to list areas")
		return
	}

	sort.SliceStable(areas, func(i, j int) bool {
		return natural.Less(areas[i].Name, areas[j].Name)
	})
	writeJSON(w, http.StatusOK, map[string]any{"areas": areas, "count": len(areas)})
}
