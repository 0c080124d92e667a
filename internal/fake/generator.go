// Package fake provides utilities for generating random catalog data for testing and development purposes.
package fake

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/acrc-community/acrc/internal/filestore"
	"github.com/acrc-community/acrc/internal/models"
	"github.com/acrc-community/acrc/internal/storage"
	"github.com/rs/zerolog/log"
)

// GenerateData populates the storage with count servers and count cars.
// Cars have no archive on record, so their downloads answer with an acknowledgement.
func GenerateData(store *storage.Repository, count int) {
	tracks := []string{"Nürburgring GP", "Ebisu Minami", "Akina Downhill", "Spa-Francorchamps", "Shuto Expressway", "Usui Pass"}
	hosts := []string{"Drift Masters", "Midnight Club", "GT3 Racing Challenge", "Touge Union", "Street Kings", "Freestyle Friday"}
	countries := []string{"FR", "DE", "GB", "US", "JP", "PL", "NL", "SE"}
	cars := []struct {
		name     string
		category string
		drive    string
		power    int
	}{
		{name: "Ferrari 488 GT3", category: models.CarCategoryGT, power: 661, drive: "RWD"},
		{name: "Nissan Silvia S15", category: models.CarCategoryJDM, power: 250, drive: "RWD"},
		{name: "Toyota AE86", category: models.CarCategoryDrift, power: 130, drive: "RWD"},
		{name: "Subaru Impreza WRC", category: models.CarCategoryRally, power: 300, drive: "AWD"},
		{name: "Ferrari F2004", category: models.CarCategoryF1, power: 900, drive: "RWD"},
		{name: "BMW M3 E30", category: models.CarCategorySport, power: 215, drive: "RWD"},
	}

	var serverIDs []int64
	for i := 0; i < count; i++ {
		host := hosts[rand.Intn(len(hosts))]
		ip := fmt.Sprintf("%d.%d.%d.%d", rand.Intn(220)+1, rand.Intn(255), rand.Intn(255), rand.Intn(255))
		port := fmt.Sprintf("%d", 8081+rand.Intn(100))
		maxPlayers := 12 + rand.Intn(13)
		online := rand.Float32() < 0.7

		players := 0
		if online {
			players = rand.Intn(maxPlayers + 1)
		}

		s, err := store.CreateServer(models.Server{
			Name:           fmt.Sprintf("%s #%d", host, rand.Intn(100)),
			Description:    "Generated server",
			Category:       models.ServerCategories[rand.Intn(len(models.ServerCategories))],
			Map:            tracks[rand.Intn(len(tracks))],
			MaxPlayers:     maxPlayers,
			CurrentPlayers: players,
			IsOnline:       online,
			ConnectionLink: fmt.Sprintf("https://acstuff.ru/s/q:race/online/join?ip=%s&httpPort=%s", ip, port),
			TrackCount:     1 + rand.Intn(5),
			CountryCode:    countries[rand.Intn(len(countries))],
			ServerIP:       ip,
			HTTPPort:       port,
			LastUpdated:    time.Now().Add(-time.Duration(rand.Intn(1440)) * time.Minute),
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake server")
			continue
		}
		serverIDs = append(serverIDs, s.ID)
	}

	for i := 0; i < count; i++ {
		c := cars[rand.Intn(len(cars))]
		token := filestore.Token()

		draft := models.CarDraft{
			Name:          c.name,
			Category:      c.category,
			DownloadURL:   "/api/cars/" + token + "/download",
			DownloadToken: token,
			Rating:        30 + rand.Intn(21),
			Specs: map[string]any{
				"power": fmt.Sprintf("%d HP", c.power),
				"drive": c.drive,
			},
		}

		// 60% chance the car is linked to a server
		if len(serverIDs) > 0 && rand.Float32() < 0.6 {
			id := serverIDs[rand.Intn(len(serverIDs))]
			draft.ServerID = &id
		}

		if _, err := store.CreateCar(draft); err != nil {
			log.Warn().Err(err).Msg("Failed to generate fake car")
		}
	}

	log.Info().Int("servers", len(serverIDs)).Int("cars", count).Msg("Fake data generated")
}
