package models

import "time"

const (
	InventoryElectrical = "ee"
	InventoryPassive    = "ep"
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

// InventoryItem is one equipment line of a site. Kind is InventoryElectrical
// or InventoryPassive.
type InventoryItem struct {
	ID           string
	SiteID       string
	Kind         string
	Name         string
	Model        string
	SerialNumber string
	Quantity     int
}
