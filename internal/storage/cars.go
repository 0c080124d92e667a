package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/acrc-community/acrc/internal/models"
)

const carColumns = `id, name, category, image_url, download_url, download_token, rating, specs,
	server_id, file_path, extracted_path, model3d_path, uploaded_at`

// CreateCar persists a draft and returns the stored entry.
func (r *Repository) CreateCar(d models.CarDraft) (*models.Car, error) {
	specs, err := encodeJSON(d.Specs, "{}")
	if err != nil {
		return nil, fmt.Errorf("encode specs: %w", err)
	}

	uploadedAt := time.Now().UTC()
	res, err := r.db.Exec(`
		INSERT INTO cars (
			name, category, image_url, download_url, download_token, rating, specs,
			server_id, file_path, extracted_path, model3d_path, uploaded_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Name, d.Category, d.ImageURL, d.DownloadURL, nullString(d.DownloadToken), d.Rating, specs,
		nullInt64(d.ServerID), d.FilePath, d.ExtractedPath, d.Model3DPath, uploadedAt,
	)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return r.GetCar(id)
}

// GetCar returns the car with id, or nil when there is none.
func (r *Repository) GetCar(id int64) (*models.Car, error) {
	return r.getCar(`SELECT `+carColumns+` FROM cars WHERE id = ?`, id)
}

// GetCarByToken returns the car with the download token, or nil when there is none.
func (r *Repository) GetCarByToken(token string) (*models.Car, error) {
	if token == "" {
		return nil, nil
	}

	return r.getCar(`SELECT `+carColumns+` FROM cars WHERE download_token = ?`, token)
}

func (r *Repository) getCar(query string, arg any) (*models.Car, error) {
	c, err := scanCar(r.db.QueryRow(query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, err
	}

	return c, nil
}

// ListCars returns cars newest first; an empty category lists all of them.
func (r *Repository) ListCars(category string) ([]models.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars`
	var args []any

	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY uploaded_at DESC, id DESC`

	return r.queryCars(query, args...)
}

// ListCarsByServer returns cars linked to a server.
func (r *Repository) ListCarsByServer(serverID int64) ([]models.Car, error) {
	return r.queryCars(`SELECT `+carColumns+` FROM cars WHERE server_id = ? ORDER BY id`, serverID)
}

// DeleteCar removes a car row. Files on disk are left to the caller.
func (r *Repository) DeleteCar(id int64) error {
	res, err := r.db.Exec(`DELETE FROM cars WHERE id = ?`, id)
	if err != nil {
		return err
	}

	return affected(res)
}

func (r *Repository) queryCars(query string, args ...any) ([]models.Car, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cars := []models.Car{}
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cars, nil
}

func scanCar(s scanner) (*models.Car, error) {
	var (
		c        models.Car
		token    sql.NullString
		serverID sql.NullInt64
		specs    string
	)

	if err := s.Scan(
		&c.ID, &c.Name, &c.Category, &c.ImageURL, &c.DownloadURL, &token, &c.Rating, &specs,
		&serverID, &c.FilePath, &c.ExtractedPath, &c.Model3DPath, &c.UploadedAt,
	); err != nil {
		return nil, err
	}

	c.DownloadToken = token.String
	if serverID.Valid {
		id := serverID.Int64
		c.ServerID = &id
	}
	c.Specs = decodeJSON(specs)
	if c.Specs == nil {
		c.Specs = map[string]any{}
	}

	return &c, nil
}
