package model

import (
	"time"
)

// Device is a registered board. The registry keys devices by name; the
// numeric ID (1-99) determines the derived ports.
type Device struct {
	ID          int               `json:"id" yaml:"id"`
	Type        string            `json:"type" yaml:"type"`
	Host        string            `json:"host,omitempty" yaml:"host,omitempty"`
	Hostname    string            `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	APIKey      string            `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	WebUsername string            `json:"web_username,omitempty" yaml:"web_username,omitempty"`
	WebPassword string            `json:"web_password,omitempty" yaml:"web_password,omitempty"`
	MACAddress  string            `json:"mac_address,omitempty" yaml:"mac_address,omitempty"`
	Sensors     []Sensor          `json:"sensors,omitempty" yaml:"sensors,omitempty"`
	DeviceInfo  map[string]string `json:"device_info,omitempty" yaml:"device_info,omitempty"`
	LastSeen    *time.Time        `json:"last_seen,omitempty" yaml:"last_seen,omitempty"`
}

// Sensor is one entity reported by a board's web server.
type Sensor struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	State string `json:"state" yaml:"state"`
	Unit  string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// ScanResult is the outcome of probing a single device during one scan
// cycle. It is not persisted as a unit; changed fields are folded back into
// the registry and the transition log.
type ScanResult struct {
	Name      string            `json:"name"`
	ID        int               `json:"id"`
	Type      string            `json:"type"`
	Host      string            `json:"host"`
	Hostname  string            `json:"hostname"`
	WebPort   int               `json:"web_port"`
	OTAPort   int               `json:"ota_port"`
	APIPort   int               `json:"api_port"`
	Online    bool              `json:"online"`
	OTAOnline bool              `json:"ota_online"`
	WebOnline bool              `json:"web_online"`
	APIOnline bool              `json:"api_online"`
	MAC       string            `json:"mac_address,omitempty"`
	Sensors   []Sensor          `json:"sensors,omitempty"`
	Info      map[string]string `json:"device_info,omitempty"`
	Err       string            `json:"error,omitempty"`
}

// DiscoveredDevice is a board found on the network that may or may not be
// in the registry.
type DiscoveredDevice struct {
	ID      int    `json:"id"`
	Host    string `json:"host"`
	OTAPort int    `json:"ota_port"`
	WebPort int    `json:"web_port"`
	APIPort int    `json:"api_port"`
	IsNew   bool   `json:"is_new"`
}

// Status events recorded in the transition log.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusEntry is one online/offline transition.
type StatusEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Event     string    `json:"event"`
	Details   string    `json:"details"`
}
