// Package dynalite implements the Dynalite lighting bridge for Gray Logic.
//
// A Dynalite network is reached through a gateway process that owns the
// serial/IP connection to the Philips Dynalite bus and exposes it over MQTT.
// This package sits between that gateway and the host platform: it expands
// the user's bridge configuration, turns gateway events into typed entities,
// keeps their state current, and links them to house areas.
//
// # Architecture
//
//	┌─────────────────┐          ┌─────────────────┐          ┌──────────────┐
//	│   Host platform │ entities │ Dynalite Bridge │   MQTT   │   Gateway    │  RS485
//	│  (internal/host)│◄────────►│   (this pkg)    │◄────────►│   process    │◄────────► Bus
//	└─────────────────┘          └─────────────────┘          └──────────────┘
//
// # Key Responsibilities
//
//   - Expand area templates (room, trigger, channelcover) into concrete
//     preset and channel definitions
//   - Create light, switch and cover entities as the bus announces them
//   - Route preset and channel events to the entity they target
//   - Queue entities until the host registers a per-category callback
//   - Assign entities to house areas according to the areacreate policy
//   - Publish health status and metrics
//
// # Entity addressing
//
// Every entity is addressed by an [EntityKey]: a channel within an area, a
// preset within an area, or the room switch of an area. Unique IDs are
// derived from the bridge host and the key:
//
//	dynalite_<host>_a<area>_c<channel>
//	dynalite_<host>_a<area>_p<preset>
//	dynalite_<host>_a<area>_room
//
// # Levels
//
// Dynalite channel levels are raw bytes where 1 is fully on and 255 fully
// off. [NormalizeLevel] converts them to the fraction 0.0 to 1.0 used
// everywhere else. Covers have no position feedback, so a cover's position
// is estimated by accumulating level changes scaled by its travel factor.
//
// # Thread Safety
//
// All exported methods on [Bridge] are safe for concurrent use. Event
// handling runs under the bridge lock; callbacks into the host (entity
// registration, refresh requests) are issued after the lock is released.
package dynalite
