package layout

import "github.com/topolord/topolord/pkg/topology"

// Position is a client-side 2-D coordinate. Positions are transient view
// state and are never persisted by the daemon.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node pairs a topology service with its on-screen placement.
type Node struct {
	Service  topology.Service `json:"service"`
	Position Position         `json:"position"`
	Width    float64          `json:"width"`
	Height   float64          `json:"height"`
}

// Config controls node sizing and separation for the layered layout.
type Config struct {
	Direction string // "LR" (default) or "TB"
	NodeSep   float64
	RankSep   float64
	Width     float64
	Height    float64

	// IncludeEdges widens the reconciliation signature to cover the edge
	// set, so edge-only topology changes also trigger a full re-layout.
	// Off by default: positions are then keyed on the node-id set alone.
	IncludeEdges bool
}

// DefaultConfig returns the layout parameters used by the dashboard map.
func DefaultConfig() Config {
	return Config{
		Direction: "LR",
		NodeSep:   60,
		RankSep:   160,
		Width:     180,
		Height:    60,
	}
}

func (c Config) withDefaults() Config {
	if c.Direction != "TB" {
		c.Direction = "LR"
	}
	if c.NodeSep <= 0 {
		c.NodeSep = 60
	}
	if c.RankSep <= 0 {
		c.RankSep = 160
	}
	if c.Width <= 0 {
		c.Width = 180
	}
	if c.Height <= 0 {
		c.Height = 60
	}
	return c
}
