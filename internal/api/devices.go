package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-dynalite/internal/device"
)

// handleListDevices returns the registered devices, ordered by unique ID.
//
// Query parameters:
//   - bridge: filter by bridge name
//   - category: filter by category (light, switch, cover)
//   - area_id: filter by area; "none" lists unassigned devices
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bridge := q.Get("bridge")
	category := q.Get("category")
	areaID := q.Get("area_id")

	if category != "" && category != "light" && category != "switch" && category != "cover" {
		writeBadRequest(w, "category must be light, switch or cover")
		return
	}

	devices, err := s.devices.ListDevices(r.Context())
	if err != nil {
		s.logger.Error("listing devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	filtered := make([]device.Device, 0, len(devices))
	for _, d := range devices {
		if bridge != "" && d.Bridge != bridge {
			continue
		}
		if category != "" && d.Category != category {
			continue
		}
		if !matchArea(d.AreaID, areaID) {
			continue
		}
		filtered = append(filtered, d)
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": filtered, "count": len(filtered)})
}

func matchArea(deviceArea *string, want string) bool {
	switch want {
	case "":
		return true
	case "none":
		return deviceArea == nil
	default:
		return deviceArea != nil && *deviceArea == want
	}
}
