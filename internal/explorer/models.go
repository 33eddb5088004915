package explorer

import (
	"time"

	"github.com/efebarandurmaz/lineage/internal/ir"
)

// VersionsResponse is returned by GET /api/versions.
type VersionsResponse struct {
	Versions    []string      `json:"versions"`
	Kinds       []KindSummary `json:"kinds"`
	GeneratedBy string        `json:"generated_by"`
	LoadedAt    time.Time     `json:"loaded_at"`
}

// KindSummary counts the settings of one registry.
type KindSummary struct {
	Kind     string `json:"kind"`
	Settings int    `json:"settings"`
	Live     int    `json:"live"`
}

// SettingsResponse is returned by GET /api/settings/{kind}.
type SettingsResponse struct {
	Kind     string        `json:"kind"`
	Count    int           `json:"count"`
	Settings []*ir.Setting `json:"settings"`
}

type errorResponse struct {
	Error string `json:"error"`
}
