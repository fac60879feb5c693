package postgres

import (
	"context"
	"fmt"

	"github.com/example/vetclinic-scheduler/internal/persistence"
	"github.com/jackc/pgx/v5"
)

// GetClinic retrieves a clinic by ID.
func (s *Store) GetClinic(ctx context.Context, id string) (persistence.Clinic, error) {
	var clinic persistence.Clinic
	err := s.pool.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM clinics WHERE id = $1`, id).
		Scan(&clinic.ID, &clinic.Name, &clinic.CreatedAt, &clinic.UpdatedAt)
	if err != nil {
		return persistence.Clinic{}, mapError(err)
	}
	return clinic, nil
}

// ListClinics returns clinics ordered by creation time, then ID.
func (s *Store) ListClinics(ctx context.Context) ([]persistence.Clinic, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at, updated_at FROM clinics ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var clinics []persistence.Clinic
	for rows.Next() {
		var clinic persistence.Clinic
		if err := rows.Scan(&clinic.ID, &clinic.Name, &clinic.CreatedAt, &clinic.UpdatedAt); err != nil {
			return nil, mapError(err)
		}
		clinics = append(clinics, clinic)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return clinics, nil
}

// GetTutor retrieves a tutor by ID.
func (s *Store) GetTutor(ctx context.Context, id string) (persistence.Tutor, error) {
	var tutor persistence.Tutor
	err := s.pool.QueryRow(ctx, `SELECT id, name, phone, email, created_at, updated_at FROM tutors WHERE id = $1`, id).
		Scan(&tutor.ID, &tutor.Name, &tutor.Phone, &tutor.Email, &tutor.CreatedAt, &tutor.UpdatedAt)
	if err != nil {
		return persistence.Tutor{}, mapError(err)
	}
	return tutor, nil
}

// GetAnimal retrieves an animal by ID.
func (s *Store) GetAnimal(ctx context.Context, id string) (persistence.Animal, error) {
	var animal persistence.Animal
	err := s.pool.QueryRow(ctx, `
		SELECT id, tutor_id, name, species, breed, birth_date, sex, weight_kg, is_neutered, microchip, notes, created_at, updated_at
		FROM animals
		WHERE id = $1
	`, id).Scan(
		&animal.ID,
		&animal.TutorID,
		&animal.Name,
		&animal.Species,
		&animal.Breed,
		&animal.BirthDate,
		&animal.Sex,
		&animal.WeightKg,
		&animal.IsNeutered,
		&animal.Microchip,
		&animal.Notes,
		&animal.CreatedAt,
		&animal.UpdatedAt,
	)
	if err != nil {
		return persistence.Animal{}, mapError(err)
	}
	return animal, nil
}

// ImportDirectory upserts clinics, then tutors, then animals inside one transaction.
func (s *Store) ImportDirectory(ctx context.Context, snapshot persistence.DirectorySnapshot) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, clinic := range snapshot.Clinics {
			_, err := tx.Exec(ctx, `
				INSERT INTO clinics (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
			`, clinic.ID, clinic.Name, clinic.CreatedAt.UTC(), clinic.UpdatedAt.UTC())
			if err != nil {
				return fmt.Errorf("clinic %s: %w", clinic.ID, mapError(err))
			}
		}
		for _, tutor := range snapshot.Tutors {
			_, err := tx.Exec(ctx, `
				INSERT INTO tutors (id, name, phone, email, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE SET
					name = EXCLUDED.name,
					phone = EXCLUDED.phone,
					email = EXCLUDED.email,
					updated_at = EXCLUDED.updated_at
			`, tutor.ID, tutor.Name, tutor.Phone, tutor.Email, tutor.CreatedAt.UTC(), tutor.UpdatedAt.UTC())
			if err != nil {
				return fmt.Errorf("tutor %s: %w", tutor.ID, mapError(err))
			}
		}
		for _, animal := range snapshot.Animals {
			_, err := tx.Exec(ctx, `
				INSERT INTO animals (id, tutor_id, name, species, breed, birth_date, sex, weight_kg, is_neutered, microchip, notes, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
				ON CONFLICT (id) DO UPDATE SET
					tutor_id = EXCLUDED.tutor_id,
					name = EXCLUDED.name,
					species = EXCLUDED.species,
					breed = EXCLUDED.breed,
					birth_date = EXCLUDED.birth_date,
					sex = EXCLUDED.sex,
					weight_kg = EXCLUDED.weight_kg,
					is_neutered = EXCLUDED.is_neutered,
					microchip = EXCLUDED.microchip,
					notes = EXCLUDED.notes,
					updated_at = EXCLUDED.updated_at
			`,
				animal.ID, animal.TutorID, animal.Name, animal.Species, animal.Breed, animal.BirthDate,
				animal.Sex, animal.WeightKg, animal.IsNeutered, animal.Microchip, animal.Notes,
				animal.CreatedAt.UTC(), animal.UpdatedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("animal %s: %w", animal.ID, mapError(err))
			}
		}
		return nil
	})
}
