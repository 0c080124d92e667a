// Package status runs the server-link flows: previewing a connection link,
// registering a server from it and refreshing the stored status of servers.
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/acrc-community/acrc/internal/category"
	"github.com/acrc-community/acrc/internal/game"
	"github.com/acrc-community/acrc/internal/link"
	"github.com/acrc-community/acrc/internal/models"
	"github.com/acrc-community/acrc/internal/storage"
	"github.com/rs/zerolog/log"
)

// ErrNoAddress is returned when a stored server has no address and its link cannot be parsed.
var ErrNoAddress = errors.New("server has no usable address")

// Store is the part of the catalog the flows need.
type Store interface {
	GetServer(id int64) (*models.Server, error)
	CreateServer(s models.Server) (*models.Server, error)
	UpdateServerStatus(id int64, online bool, ip, httpPort string, at time.Time) error
	UpdateServerDetails(id int64, info models.ServerLiveInfo) error
}

// Prober queries a game server.
type Prober interface {
	Ping(ctx context.Context, ip, httpPort string) bool
	Details(ctx context.Context, ip, httpPort string) *models.ServerLiveInfo
}

// Locator resolves the country of an address.
type Locator interface {
	CountryCode(ip string) string
}

// Service implements the server-link flows.
type Service struct {
	store  Store
	prober Prober
	geo    Locator
	now    func() time.Time
}

// New creates a Service. geo may be nil.
func New(store Store, prober Prober, geo Locator) *Service {
	return &Service{
		store:  store,
		prober: prober,
		geo:    geo,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Preview is the result of probing a connection link without storing it.
type Preview struct {
	Info     *models.ServerLiveInfo `json:"serverInfo"`
	IP       string                 `json:"serverIP"`
	HTTPPort string                 `json:"httpPort"`
	Format   string                 `json:"matchedFormat"`
	Online   bool                   `json:"online"`
}

// Preview parses text and probes the server it points at.
// A parse failure wraps link.ErrUnparseable; an unreachable server is not an error.
func (s *Service) Preview(ctx context.Context, text string) (*Preview, error) {
	p, err := link.Parse(text)
	if err != nil {
		return nil, err
	}

	online, info := s.probe(ctx, p.IP, p.HTTPPort)

	return &Preview{
		IP:       p.IP,
		HTTPPort: p.HTTPPort,
		Format:   p.Format,
		Online:   online,
		Info:     info,
	}, nil
}

// CreateFromLink registers the server behind text.
// An empty cat is derived from the reported server name.
// When the server does not answer, the entry is created with placeholder values.
func (s *Service) CreateFromLink(ctx context.Context, text, cat string) (*models.Server, error) {
	pv, err := s.Preview(ctx, text)
	if err != nil {
		return nil, err
	}

	server := models.Server{
		Name:           net.JoinHostPort(pv.IP, pv.HTTPPort),
		Map:            game.UnknownTrack,
		IsOnline:       pv.Online,
		ConnectionLink: text,
		TrackCount:     1,
		ServerIP:       pv.IP,
		HTTPPort:       pv.HTTPPort,
		LastUpdated:    s.now(),
	}
	if s.geo != nil {
		server.CountryCode = s.geo.CountryCode(pv.IP)
	}

	if info := pv.Info; info != nil {
		if info.Name != game.UnknownServer {
			server.Name = info.Name
		}
		server.Map = info.Map
		server.Description = info.Description
		server.MaxPlayers = info.MaxClients
		server.CurrentPlayers = info.Clients
		server.Details = info.Raw
		if info.Port > 0 {
			server.ServerPort = strconv.Itoa(info.Port)
		}
	}
	if server.Description == "" {
		server.Description = server.Name + " server"
	}
	server.Category = category.Servers.Resolve(cat, server.Name)

	created, err := s.store.CreateServer(server)
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}

	log.Info().
		Int64("id", created.ID).
		Str("name", created.Name).
		Str("category", created.Category).
		Str("ip", created.ServerIP).
		Str("port", created.HTTPPort).
		Bool("online", created.IsOnline).
		Msg("Server created from link")

	return created, nil
}

// Result describes one refresh.
type Result struct {
	Server *models.Server
	Online bool

	// Details is false when the server was online but its details could not be fetched.
	Details bool
}

// Refresh re-probes a stored server and persists its status.
// The status is always written; details are only fetched for online servers
// and a failed fetch leaves the status update in place.
func (s *Service) Refresh(ctx context.Context, id int64) (*Result, error) {
	server, err := s.store.GetServer(id)
	if err != nil {
		return nil, err
	}
	if server == nil {
		return nil, storage.ErrNotFound
	}

	logCtx := log.With().Int64("id", id).Logger()

	ip, port := server.ServerIP, server.HTTPPort
	if ip == "" || port == "" {
		p, err := link.Parse(server.ConnectionLink)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoAddress, err)
		}
		ip, port = p.IP, p.HTTPPort
	}

	online := s.prober.Ping(ctx, ip, port)
	if err := s.store.UpdateServerStatus(id, online, ip, port, s.now()); err != nil {
		return nil, fmt.Errorf("update server status: %w", err)
	}

	res := &Result{Online: online}
	if online {
		if info := s.prober.Details(ctx, ip, port); info != nil {
			if err := s.store.UpdateServerDetails(id, *info); err != nil {
				logCtx.Error().Err(err).Msg("Failed to store server details")
			} else {
				res.Details = true
			}
		} else {
			logCtx.Warn().Str("ip", ip).Str("port", port).Msg("Server online but details unavailable")
		}
	}

	res.Server, err = s.store.GetServer(id)
	if err != nil {
		return nil, err
	}

	logCtx.Debug().Bool("online", online).Bool("details", res.Details).Msg("Server status refreshed")

	return res, nil
}

// Summary counts the outcomes of RefreshMany.
type Summary struct {
	Online  int `json:"online"`
	Offline int `json:"offline"`
	Failed  int `json:"failed"`
}

// RefreshMany refreshes ids with a bounded number of workers.
func (s *Service) RefreshMany(ctx context.Context, ids []int64, workers int) Summary {
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int64, len(ids))
	var (
		mu  sync.Mutex
		sum Summary
		wg  sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if ctx.Err() != nil {
					mu.Lock()
					sum.Failed++
					mu.Unlock()
					continue
				}

				res, err := s.Refresh(ctx, id)

				mu.Lock()
				switch {
				case err != nil:
					sum.Failed++
					log.Debug().Err(err).Int64("id", id).Msg("Server refresh failed")
				case res.Online:
					sum.Online++
				default:
					sum.Offline++
				}
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		jobs <- id
	}
	close(jobs)

	wg.Wait()

	return sum
}

// probe runs the liveness check and the details fetch concurrently.
func (s *Service) probe(ctx context.Context, ip, port string) (bool, *models.ServerLiveInfo) {
	var (
		online bool
		info   *models.ServerLiveInfo
		wg     sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		online = s.prober.Ping(ctx, ip, port)
	}()
	go func() {
		defer wg.Done()
		info = s.prober.Details(ctx, ip, port)
	}()
	wg.Wait()

	return online, info
}
