package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/acrc-community/acrc/internal/models"
)

const serverColumns = `id, name, description, category, map, max_players, current_players, is_online,
	image_url, connection_link, track_count, country_code, server_ip, http_port, server_port,
	last_updated, server_details`

// CreateServer persists s and returns the stored entry. A zero LastUpdated is set to now.
func (r *Repository) CreateServer(s models.Server) (*models.Server, error) {
	details, err := encodeJSON(s.Details, "")
	if err != nil {
		return nil, fmt.Errorf("encode server details: %w", err)
	}
	if s.LastUpdated.IsZero() {
		s.LastUpdated = time.Now().UTC()
	}

	res, err := r.db.Exec(`
		INSERT INTO servers (
			name, description, category, map, max_players, current_players, is_online,
			image_url, connection_link, track_count, country_code, server_ip, http_port, server_port,
			last_updated, server_details
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.Description, s.Category, s.Map, s.MaxPlayers, s.CurrentPlayers, s.IsOnline,
		s.ImageURL, s.ConnectionLink, s.TrackCount, s.CountryCode, s.ServerIP, s.HTTPPort, s.ServerPort,
		s.LastUpdated, details,
	)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return r.GetServer(id)
}

// GetServer returns the server with id, or nil when there is none.
func (r *Repository) GetServer(id int64) (*models.Server, error) {
	s, err := scanServer(r.db.QueryRow(`SELECT `+serverColumns+` FROM servers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	return s, nil
}

// ListServers returns servers, online first; an empty category lists all of them.
func (r *Repository) ListServers(category string) ([]models.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM servers`
	var args []any

	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY is_online DESC, current_players DESC, id`

	return r.queryServers(query, args...)
}

// ListServersSubset retrieves servers for maintenance.
// If onlyOffline is true, it returns only servers last seen offline.
func (r *Repository) ListServersSubset(onlyOffline bool) ([]models.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM servers`
	if onlyOffline {
		query += ` WHERE is_online = 0`
	}
	query += ` ORDER BY last_updated, id`

	return r.queryServers(query)
}

// UpdateServerStatus records a probe result together with the address it was taken from.
func (r *Repository) UpdateServerStatus(id int64, online bool, ip, httpPort string, at time.Time) error {
	res, err := r.db.Exec(`
		UPDATE servers SET
			is_online = ?,
			server_ip = ?,
			http_port = ?,
			current_players = CASE WHEN ? THEN current_players ELSE 0 END,
			last_updated = ?
		WHERE id = ?`,
		online, ip, httpPort, online, at.UTC(), id,
	)
	if err != nil {
		return err
	}

	return affected(res)
}

// UpdateServerDetails merges live details into a server row.
// Unreported max players and description keep their stored values.
func (r *Repository) UpdateServerDetails(id int64, info models.ServerLiveInfo) error {
	details, err := encodeJSON(info.Raw, "")
	if err != nil {
		return fmt.Errorf("encode server details: %w", err)
	}

	res, err := r.db.Exec(`
		UPDATE servers SET
			current_players = ?,
			max_players     = CASE WHEN ? > 0 THEN ? ELSE max_players END,
			description     = CASE WHEN ? != '' THEN ? ELSE description END,
			map             = CASE WHEN ? != '' THEN ? ELSE map END,
			server_details  = ?
		WHERE id = ?`,
		info.Clients,
		info.MaxClients, info.MaxClients,
		info.Description, info.Description,
		info.Map, info.Map,
		details, id,
	)
	if err != nil {
		return err
	}

	return affected(res)
}

// DeleteServer removes a server and detaches its cars.
func (r *Repository) DeleteServer(id int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`UPDATE cars SET server_id = NULL WHERE server_id = ?`, id); err != nil {
		return err
	}

	res, err := tx.Exec(`DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := affected(res); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) queryServers(query string, args ...any) ([]models.Server, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	servers := []models.Server{}
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return servers, nil
}

func scanServer(sc scanner) (*models.Server, error) {
	var (
		s       models.Server
		details string
	)

	if err := sc.Scan(
		&s.ID, &s.Name, &s.Description, &s.Category, &s.Map, &s.MaxPlayers, &s.CurrentPlayers, &s.IsOnline,
		&s.ImageURL, &s.ConnectionLink, &s.TrackCount, &s.CountryCode, &s.ServerIP, &s.HTTPPort, &s.ServerPort,
		&s.LastUpdated, &details,
	); err != nil {
		return nil, err
	}
	s.Details = decodeJSON(details)

	return &s, nil
}
