package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/vetclinic-scheduler/internal/persistence"
)

const dateLayout = "2006-01-02"

// DirectoryRepository implements persistence.DirectoryRepository using SQLite.
type DirectoryRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewDirectoryRepository creates a new SQLite directory repository.
func NewDirectoryRepository(pool *ConnectionPool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool, mapper: NewErrorMapper()}
}

// GetClinic retrieves a clinic by ID.
func (r *DirectoryRepository) GetClinic(ctx context.Context, id string) (persistence.Clinic, error) {
	if id == "" {
		return persistence.Clinic{}, persistence.ErrNotFound
	}

	const query = `SELECT id, name, created_at, updated_at FROM clinics WHERE id = ?`

	clinic, err := scanClinic(r.pool.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Clinic{}, persistence.ErrNotFound
		}
		return persistence.Clinic{}, r.mapper.MapError(err)
	}
	return clinic, nil
}

// ListClinics returns clinics ordered by creation time, then ID.
func (r *DirectoryRepository) ListClinics(ctx context.Context) ([]persistence.Clinic, error) {
	const query = `SELECT id, name, created_at, updated_at FROM clinics ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var clinics []persistence.Clinic
	for rows.Next() {
		clinic, err := scanClinic(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		clinics = append(clinics, clinic)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return clinics, nil
}

// GetTutor retrieves a tutor by ID.
func (r *DirectoryRepository) GetTutor(ctx context.Context, id string) (persistence.Tutor, error) {
	if id == "" {
		return persistence.Tutor{}, persistence.ErrNotFound
	}

	const query = `SELECT id, name, phone, email, created_at, updated_at FROM tutors WHERE id = ?`

	var (
		tutor                persistence.Tutor
		phone, email         sql.NullString
		createdAt, updatedAt string
	)
	err := r.pool.db.QueryRowContext(ctx, query, id).Scan(&tutor.ID, &tutor.Name, &phone, &email, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Tutor{}, persistence.ErrNotFound
		}
		return persistence.Tutor{}, r.mapper.MapError(err)
	}

	tutor.Phone = stringPtr(phone)
	tutor.Email = stringPtr(email)
	if tutor.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Tutor{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if tutor.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Tutor{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return tutor, nil
}

// GetAnimal retrieves an animal by ID.
func (r *DirectoryRepository) GetAnimal(ctx context.Context, id string) (persistence.Animal, error) {
	if id == "" {
		return persistence.Animal{}, persistence.ErrNotFound
	}

	const query = `
		SELECT id, tutor_id, name, species, breed, birth_date, sex, weight_kg, is_neutered, microchip, notes, created_at, updated_at
		FROM animals
		WHERE id = ?
	`

	var (
		animal                persistence.Animal
		breed, birthDate, sex sql.NullString
		microchip, notes      sql.NullString
		weight                sql.NullFloat64
		neutered              int
		createdAt, updatedAt  string
	)
	err := r.pool.db.QueryRowContext(ctx, query, id).Scan(
		&animal.ID,
		&animal.TutorID,
		&animal.Name,
		&animal.Species,
		&breed,
		&birthDate,
		&sex,
		&weight,
		&neutered,
		&microchip,
		&notes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Animal{}, persistence.ErrNotFound
		}
		return persistence.Animal{}, r.mapper.MapError(err)
	}

	animal.Breed = stringPtr(breed)
	animal.Sex = stringPtr(sex)
	animal.Microchip = stringPtr(microchip)
	animal.Notes = stringPtr(notes)
	animal.IsNeutered = neutered == 1
	if weight.Valid {
		w := weight.Float64
		animal.WeightKg = &w
	}
	if birthDate.Valid {
		parsed, err := time.Parse(dateLayout, birthDate.String)
		if err != nil {
			return persistence.Animal{}, fmt.Errorf("failed to parse birth_date: %w", err)
		}
		animal.BirthDate = &parsed
	}
	if animal.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Animal{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if animal.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Animal{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return animal, nil
}

// ImportDirectory upserts clinics, then tutors, then animals inside one transaction.
func (r *DirectoryRepository) ImportDirectory(ctx context.Context, snapshot persistence.DirectorySnapshot) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, clinic := range snapshot.Clinics {
			if err := r.upsertClinic(ctx, tx, clinic); err != nil {
				return fmt.Errorf("clinic %s: %w", clinic.ID, err)
			}
		}
		for _, tutor := range snapshot.Tutors {
			if err := r.upsertTutor(ctx, tx, tutor); err != nil {
				return fmt.Errorf("tutor %s: %w", tutor.ID, err)
			}
		}
		for _, animal := range snapshot.Animals {
			if err := r.upsertAnimal(ctx, tx, animal); err != nil {
				return fmt.Errorf("animal %s: %w", animal.ID, err)
			}
		}
		return nil
	})
}

func (r *DirectoryRepository) upsertClinic(ctx context.Context, q queryer, clinic persistence.Clinic) error {
	if clinic.ID == "" || clinic.Name == "" {
		return persistence.ErrConstraintViolation
	}

	const query = `
		INSERT INTO clinics (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query, clinic.ID, clinic.Name, formatTime(clinic.CreatedAt), formatTime(clinic.UpdatedAt))
	return r.mapper.MapError(err)
}

func (r *DirectoryRepository) upsertTutor(ctx context.Context, q queryer, tutor persistence.Tutor) error {
	if tutor.ID == "" || tutor.Name == "" {
		return persistence.ErrConstraintViolation
	}

	const query = `
		INSERT INTO tutors (id, name, phone, email, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			email = excluded.email,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		tutor.ID,
		tutor.Name,
		nullString(tutor.Phone),
		nullString(tutor.Email),
		formatTime(tutor.CreatedAt),
		formatTime(tutor.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

func (r *DirectoryRepository) upsertAnimal(ctx context.Context, q queryer, animal persistence.Animal) error {
	if animal.ID == "" || animal.Name == "" || animal.TutorID == "" {
		return persistence.ErrConstraintViolation
	}

	const query = `
		INSERT INTO animals (id, tutor_id, name, species, breed, birth_date, sex, weight_kg, is_neutered, microchip, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tutor_id = excluded.tutor_id,
			name = excluded.name,
			species = excluded.species,
			breed = excluded.breed,
			birth_date = excluded.birth_date,
			sex = excluded.sex,
			weight_kg = excluded.weight_kg,
			is_neutered = excluded.is_neutered,
			microchip = excluded.microchip,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`

	var birthDate sql.NullString
	if animal.BirthDate != nil {
		birthDate = sql.NullString{String: animal.BirthDate.Format(dateLayout), Valid: true}
	}
	var weight sql.NullFloat64
	if animal.WeightKg != nil {
		weight = sql.NullFloat64{Float64: *animal.WeightKg, Valid: true}
	}
	neutered := 0
	if animal.IsNeutered {
		neutered = 1
	}

	_, err := q.ExecContext(ctx, query,
		animal.ID,
		animal.TutorID,
		animal.Name,
		animal.Species,
		nullString(animal.Breed),
		birthDate,
		nullString(animal.Sex),
		weight,
		neutered,
		nullString(animal.Microchip),
		nullString(animal.Notes),
		formatTime(animal.CreatedAt),
		formatTime(animal.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

func scanClinic(row rowScanner) (persistence.Clinic, error) {
	var (
		clinic               persistence.Clinic
		createdAt, updatedAt string
	)
	if err := row.Scan(&clinic.ID, &clinic.Name, &createdAt, &updatedAt); err != nil {
		return persistence.Clinic{}, err
	}

	var err error
	if clinic.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Clinic{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if clinic.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Clinic{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return clinic, nil
}
