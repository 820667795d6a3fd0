// Package inventory holds the read-only view of inventory data supplied by the
// host page: items, per-slice snapshots and the append-only snapshot store.
package inventory

import (
	"fmt"
	"strconv"
	"strings"
)

// Ref identifies a tradeable asset.
type Ref struct {
	AppID     int
	ContextID string
	AssetID   string
}

// String renders r in the host's "appid_contextid_assetid" element-id form.
func (r Ref) String() string {
	return fmt.Sprintf("%d_%s_%s", r.AppID, r.ContextID, r.AssetID)
}

// ParseRef parses the "appid_contextid_assetid" form produced by Ref.String.
//
// Postcondition: returns an error when s has the wrong shape or any part is empty.
func ParseRef(s string) (Ref, error) {
	parts := strings.Split(strings.TrimSpace(s), "_")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return Ref{}, fmt.Errorf("inventory: malformed item reference %q", s)
	}
	app, err := strconv.Atoi(parts[0])
	if err != nil || app <= 0 {
		return Ref{}, fmt.Errorf("inventory: malformed app id in reference %q", s)
	}
	return Ref{AppID: app, ContextID: parts[1], AssetID: parts[2]}, nil
}

// Item is an immutable reference to a tradeable asset as described by the host.
type Item struct {
	AppID      int      `yaml:"app_id"`
	ContextID  string   `yaml:"context_id"`
	AssetID    string   `yaml:"asset_id"`
	Position   int      `yaml:"position"`
	Tags       []string `yaml:"tags"`
	MarketName string   `yaml:"market_name"`
	Stackable  bool     `yaml:"stackable"`
}

// Ref returns the identity of i.
func (i Item) Ref() Ref {
	return Ref{AppID: i.AppID, ContextID: i.ContextID, AssetID: i.AssetID}
}

// HasTag reports whether i carries tag, compared case-insensitively.
func (i Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
