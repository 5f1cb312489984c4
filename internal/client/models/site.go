package models

import "time"

// InventoryKind separates the two inventory families kept per site.
type InventoryKind string

const (
	// InventoryElectrical is active electrical equipment.
	InventoryElectrical InventoryKind = "ee"
	// InventoryPassive is passive equipment (antennas, mounts, cabling).
	InventoryPassive InventoryKind = "ep"
)

type Site struct {
	ID        string
	Code      string
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
	UpdatedAt time.Time
}

type InventoryItem struct {
	ID           string
	SiteID       string
	Kind         InventoryKind
	Name         string
	Model        string
	SerialNumber string
	Quantity     int
}

// SiteBundle is the bulk payload replaced as a whole on every site sync.
type SiteBundle struct {
	Sites     []Site
	Inventory []InventoryItem
}
