// Package models defines the data structures used for API requests and database persistence.
package models

import "time"

// Car categories.
const (
	CarCategoryGT    = "GT"
	CarCategorySport = "Sport"
	CarCategoryJDM   = "JDM"
	CarCategoryF1    = "F1"
	CarCategoryDrift = "Drift"
	CarCategoryRally = "Rally"
)

// Server categories.
const (
	ServerCategoryDrift     = "Drift"
	ServerCategoryGT3       = "GT3"
	ServerCategoryTouge     = "Touge"
	ServerCategoryStreet    = "Street"
	ServerCategoryFreestyle = "Freestyle"
)

// CarCategories lists every known car category in display order.
var CarCategories = []string{
	CarCategoryGT, CarCategorySport, CarCategoryJDM, CarCategoryF1, CarCategoryDrift, CarCategoryRally,
}

// ServerCategories lists every known server category in display order.
var ServerCategories = []string{
	ServerCategoryDrift, ServerCategoryGT3, ServerCategoryTouge, ServerCategoryStreet, ServerCategoryFreestyle,
}

// DefaultCarRating is assigned to freshly ingested cars (0-50 scale).
const DefaultCarRating = 40

// CarDraft is a fully recovered car archive ready to be persisted.
type CarDraft struct {
	Specs         map[string]any `json:"specs"`
	ServerID      *int64         `json:"server_id,omitempty"`
	Name          string         `json:"name"`
	Category      string         `json:"category"`
	ImageURL      string         `json:"image_url,omitempty"`
	DownloadURL   string         `json:"download_url"`
	DownloadToken string         `json:"-"`
	FilePath      string         `json:"file_path"`
	ExtractedPath string         `json:"extracted_path"`
	Model3DPath   string         `json:"model3d_path,omitempty"`
	Rating        int            `json:"rating"`
}

// Car is a persisted car catalog entry.
type Car struct {
	UploadedAt    time.Time      `json:"uploaded_at"`
	Specs         map[string]any `json:"specs"`
	ServerID      *int64         `json:"server_id,omitempty"`
	Name          string         `json:"name"`
	Category      string         `json:"category"`
	ImageURL      string         `json:"image_url,omitempty"`
	DownloadURL   string         `json:"download_url"`
	DownloadToken string         `json:"-"`
	FilePath      string         `json:"file_path,omitempty"`
	ExtractedPath string         `json:"extracted_path,omitempty"`
	Model3DPath   string         `json:"model3d_path,omitempty"`
	ID            int64          `json:"id"`
	Rating        int            `json:"rating"`
}

// Server is a persisted game server catalog entry.
type Server struct {
	LastUpdated    time.Time      `json:"last_updated"`
	Details        map[string]any `json:"server_details,omitempty"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Category       string         `json:"category"`
	Map            string         `json:"map"`
	ImageURL       string         `json:"image_url,omitempty"`
	ConnectionLink string         `json:"connection_link"`
	CountryCode    string         `json:"country_code,omitempty"`
	ServerIP       string         `json:"server_ip,omitempty"`
	HTTPPort       string         `json:"http_port,omitempty"`
	ServerPort     string         `json:"server_port,omitempty"`
	ID             int64          `json:"id"`
	MaxPlayers     int            `json:"max_players"`
	CurrentPlayers int            `json:"current_players"`
	TrackCount     int            `json:"track_count"`
	IsOnline       bool           `json:"is_online"`
}

// ServerLiveInfo is the normalized answer of a server's /api/details endpoint.
type ServerLiveInfo struct {
	Raw         map[string]any `json:"server_details"`
	Name        string         `json:"name"`
	Map         string         `json:"map"`
	Description string         `json:"description"`
	Cars        []string       `json:"cars"`
	MaxClients  int            `json:"max_clients"`
	Clients     int            `json:"clients"`
	Port        int            `json:"port,omitempty"`
}
