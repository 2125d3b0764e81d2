package storage

import (
	"context"
	"time"

	"github.com/avelora/clinic-scheduler/libs/db"
)

// DirectoryRepository manages the referenced-by-id entities around
// appointments: clinics, their rooms and their providers. Plain record
// management; the booking engine only needs the ids to resolve.
type DirectoryRepository struct {
	pool *db.Pool
}

func NewDirectoryRepository(pool *db.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

type Clinic struct {
	ID        string
	Name      string
	Address   string
	Phone     string
	CreatedAt time.Time
}

func (r *DirectoryRepository) CreateClinic(ctx context.Context, c Clinic) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clinics (id, name, address, phone)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.Name, c.Address, c.Phone)
	return mapPgError(err)
}

func (r *DirectoryRepository) GetClinic(ctx context.Context, id string) (Clinic, error) {
	var c Clinic
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, address, COALESCE(phone, ''), created_at
		FROM clinics WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.CreatedAt)
	return c, err
}

func (r *DirectoryRepository) ListClinics(ctx context.Context) ([]Clinic, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, address, COALESCE(phone, ''), created_at
		FROM clinics ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Clinic
	for rows.Next() {
		var c Clinic
		if err := rows.Scan(&c.ID, &c.Name, &c.Address, &c.Phone, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type Room struct {
	ID        string
	ClinicID  string
	Name      string
	RoomType  string
	CreatedAt time.Time
}

func (r *DirectoryRepository) CreateRoom(ctx context.Context, room Room) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO rooms (id, clinic_id, name, room_type)
		VALUES ($1, $2, $3, $4)
	`, room.ID, room.ClinicID, room.Name, room.RoomType)
	return mapPgError(err)
}

func (r *DirectoryRepository) GetRoom(ctx context.Context, id string) (Room, error) {
	var room Room
	err := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, COALESCE(room_type, ''), created_at
		FROM rooms WHERE id = $1
	`, id).Scan(&room.ID, &room.ClinicID, &room.Name, &room.RoomType, &room.CreatedAt)
	return room, err
}

func (r *DirectoryRepository) ListRooms(ctx context.Context, clinicID string) ([]Room, error) {
	query := `SELECT id, clinic_id, name, COALESCE(room_type, ''), created_at FROM rooms`
	var args []any
	if clinicID != "" {
		query += ` WHERE clinic_id = $1`
		args = append(args, clinicID)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.ClinicID, &room.Name, &room.RoomType, &room.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

type Provider struct {
	ID        string
	ClinicID  string
	Name      string
	Specialty string
	Email     string
	Phone     string
	CreatedAt time.Time
}

func (r *DirectoryRepository) CreateProvider(ctx context.Context, p Provider) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO providers (id, clinic_id, name, specialty, email, phone)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.ClinicID, p.Name, p.Specialty, p.Email, p.Phone)
	return mapPgError(err)
}

func (r *DirectoryRepository) GetProvider(ctx context.Context, id string) (Provider, error) {
	var p Provider
	err := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, COALESCE(specialty, ''), email, COALESCE(phone, ''), created_at
		FROM providers WHERE id = $1
	`, id).Scan(&p.ID, &p.ClinicID, &p.Name, &p.Specialty, &p.Email, &p.Phone, &p.CreatedAt)
	return p, err
}

func (r *DirectoryRepository) ListProviders(ctx context.Context, clinicID string) ([]Provider, error) {
	query := `SELECT id, clinic_id, name, COALESCE(specialty, ''), email, COALESCE(phone, ''), created_at FROM providers`
	var args []any
	if clinicID != "" {
		query += ` WHERE clinic_id = $1`
		args = append(args, clinicID)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.ClinicID, &p.Name, &p.Specialty, &p.Email, &p.Phone, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
