package config

import "github.com/nicktill/crowdwait/pkg/locations"

// Wait-time multipliers per venue category
const (
	DiningHallMultiplier = 0.05
	CafeOnlyMultiplier   = 0.25
	SpecialtyMultiplier  = 0.15
)

// DefaultConfig returns a config with all defaults set.
func DefaultConfig() *Config {
	return &Config{
		Server:      ServerConfig{Port: DefaultPort},
		Storage:     StorageConfig{Backend: DefaultBackend, DataDir: DefaultDataDir, MaxMemoryMB: DefaultMaxMemoryMB},
		Log:         LogConfig{Path: DefaultLogPath},
		Refresh:     RefreshConfig{Interval: RefreshInterval},
		Export:      ExportConfig{DensityPrecision: DefaultDensityPrecision},
		Kafka:       KafkaConfig{Topic: DefaultKafkaTopic},
		TimeZone:    DefaultTimeZone,
		Sessions:    DefaultSessions(),
		Locations:   DefaultLocations(),
		Multipliers: DefaultMultipliers(),
	}
}

// DefaultMultipliers converts average occupancy to minutes per category.
func DefaultMultipliers() map[locations.Category]float64 {
	return map[locations.Category]float64{
		locations.DiningHall: DiningHallMultiplier,
		locations.CafeOnly:   CafeOnlyMultiplier,
		locations.Specialty:  SpecialtyMultiplier,
	}
}

// DefaultSessions is the 2024-25 academic calendar's non-regular periods.
func DefaultSessions() []SessionConfig {
	return []SessionConfig{
		{Label: "fall_break", Dates: "10/12/24-10/15/24"},
		{Label: "thanksgiving", Dates: "11/27/24-12/01/24"},
		{Label: "finals_fall", Dates: "12/07/24-12/18/24"},
		{Label: "winter", Dates: "12/19/24-01/20/25"},
		{Label: "feb_break", Dates: "02/22/25-02/25/25"},
		{Label: "spring_break", Dates: "03/29/25-04/06/25"},
		{Label: "finals_spring", Dates: "05/10/25-05/17/25"},
		{Label: "summer", Dates: "05/18/25-08/24/25"},
	}
}

// DefaultLocations maps swipe-log unit names to eateries.
func DefaultLocations() []locations.Location {
	hall := func(key, name string) locations.Location {
		return locations.Location{Key: key, DisplayName: name, Category: locations.DiningHall}
	}
	cafe := func(key, name string) locations.Location {
		return locations.Location{Key: key, DisplayName: name, Category: locations.CafeOnly}
	}

	return []locations.Location{
		hall("Alice Cook House", "Cook House Dining Room"),
		hall("Carl Becker House", "Becker House Dining Room"),
		hall("Jansens at Bethe House", "Jansen's Dining Room at Bethe House"),
		hall("Keeton House", "Keeton House Dining Room"),
		hall("Kosher", "104West!"),
		hall("North Star Marketplace", "North Star Dining Room"),
		hall("RPME", "Robert Purcell Marketplace Eatery"),
		hall("Risley", "Risley Dining Room"),
		hall("Rose House", "Rose House Dining Room"),
		cafe("Attrium Cafe", "Atrium Café"),
		cafe("Cafe Jennie", "Café Jennie"),
		cafe("Carols Cafe", "Carol's Café"),
		cafe("Duffield", "Mattin's Café"),
		cafe("Franny's FT", "Franny's"),
		cafe("Goldies Cafe", "Goldie's Café"),
		cafe("Jansens Market", "Jansen's Market"),
		cafe("Marthas", "Martha's Express"),
		cafe("McCormick's", "McCormick's at Moakley House"),
		cafe("Olin Libe Cafe", "Libe Café"),
		cafe("Rustys", "Rusty's"),
		cafe("Sage", "Atrium Café"),
		cafe("Statler Macs", "Mac's Café"),
		cafe("Statler Terrace", "The Terrace"),
		cafe("Straight Market", "Straight from the Market"),
		{Key: "Trillium", DisplayName: "Trillium", Category: locations.Specialty},
	}
}
