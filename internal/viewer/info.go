package viewer

import "github.com/rpggio/interview/internal/domain/query"

// Info describes the service and its read-only surfaces.
type Info struct {
	Service    string        `json:"service"`
	Version    string        `json:"version"`
	InstanceID string        `json:"instance_id"`
	Doctrine   []string      `json:"doctrine"`
	Surfaces   []SurfaceInfo `json:"surfaces"`
	Sources    []string      `json:"sources"`
}

// SurfaceInfo names a surface and the capability it requires, if any.
type SurfaceInfo struct {
	Surface    query.Surface `json:"surface"`
	Capability string        `json:"capability,omitempty"`
}

// Describe returns the service description.
func Describe(version, instanceID string) Info {
	return Info{
		Service:    "InterView",
		Version:    version,
		InstanceID: instanceID,
		Doctrine: []string{
			"read-only: never mutates the mesh or initiates work",
			"every answer names its source, staleness, truncation and cost",
			"task state is derived from explicit receipts only",
			"global ledger access is opt-in and capability gated",
		},
		Surfaces: []SurfaceInfo{
			{Surface: query.SurfaceStatus},
			{Surface: query.SurfaceSearchReceipts},
			{Surface: query.SurfaceGetReceipt},
			{Surface: query.SurfaceHealth, Capability: "can_poll_health"},
			{Surface: query.SurfaceQueue, Capability: "can_poll_queue"},
			{Surface: query.SurfaceArtifacts, Capability: "can_view_artifacts"},
			{Surface: query.SurfaceGlobalLedger, Capability: "can_force_global_ledger"},
		},
		Sources: []string{"projection_cache", "ledger_mirror", "component_poll", "storage_metadata", "global_ledger"},
	}
}
