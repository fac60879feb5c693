package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/vetclinic-scheduler/internal/persistence"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.json>",
		Short: "Import clinics, tutors and animals from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()

			snapshot, err := parseSeed(f, time.Now().UTC())
			if err != nil {
				return err
			}

			cfg, logger, err := loadRuntime()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withStore(ctx, cfg, logger, func(st store) error {
				if err := st.Migrate(ctx); err != nil {
					return fmt.Errorf("apply migrations: %w", err)
				}
				if err := st.ImportDirectory(ctx, snapshot); err != nil {
					return fmt.Errorf("import directory: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d clinic(s), %d tutor(s), %d animal(s).\n",
					len(snapshot.Clinics), len(snapshot.Tutors), len(snapshot.Animals))
				return nil
			})
		},
	}
}

type seedFile struct {
	Clinics []seedClinic `json:"clinics"`
	Tutors  []seedTutor  `json:"tutors"`
	Animals []seedAnimal `json:"animals"`
}

type seedClinic struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type seedTutor struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

type seedAnimal struct {
	ID         string   `json:"id"`
	TutorID    string   `json:"tutor_id"`
	Name       string   `json:"name"`
	Species    string   `json:"species"`
	Breed      *string  `json:"breed"`
	BirthDate  *string  `json:"birth_date"`
	Sex        *string  `json:"sex"`
	WeightKg   *float64 `json:"weight_kg"`
	IsNeutered bool     `json:"is_neutered"`
	Microchip  *string  `json:"microchip"`
	Notes      *string  `json:"notes"`
}

// parseSeed decodes a seed document. Every record is stamped with now.
func parseSeed(r io.Reader, now time.Time) (persistence.DirectorySnapshot, error) {
	var doc seedFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return persistence.DirectorySnapshot{}, fmt.Errorf("decode seed file: %w", err)
	}

	var snapshot persistence.DirectorySnapshot

	for i, c := range doc.Clinics {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
			return persistence.DirectorySnapshot{}, fmt.Errorf("clinics[%d]: id and name are required", i)
		}
		snapshot.Clinics = append(snapshot.Clinics, persistence.Clinic{ID: c.ID, Name: c.Name, CreatedAt: now, UpdatedAt: now})
	}

	for i, t := range doc.Tutors {
		if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Name) == "" {
			return persistence.DirectorySnapshot{}, fmt.Errorf("tutors[%d]: id and name are required", i)
		}
		snapshot.Tutors = append(snapshot.Tutors, persistence.Tutor{
			ID: t.ID, Name: t.Name, Phone: t.Phone, Email: t.Email, CreatedAt: now, UpdatedAt: now,
		})
	}

	for i, a := range doc.Animals {
		if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Species) == "" {
			return persistence.DirectorySnapshot{}, fmt.Errorf("animals[%d]: id, name and species are required", i)
		}
		if strings.TrimSpace(a.TutorID) == "" {
			return persistence.DirectorySnapshot{}, fmt.Errorf("animals[%d]: tutor_id is required", i)
		}
		animal := persistence.Animal{
			ID:         a.ID,
			TutorID:    a.TutorID,
			Name:       a.Name,
			Species:    a.Species,
			Breed:      a.Breed,
			Sex:        a.Sex,
			WeightKg:   a.WeightKg,
			IsNeutered: a.IsNeutered,
			Microchip:  a.Microchip,
			Notes:      a.Notes,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if a.BirthDate != nil && *a.BirthDate != "" {
			birth, err := time.Parse(time.DateOnly, *a.BirthDate)
			if err != nil {
				return persistence.DirectorySnapshot{}, fmt.Errorf("animals[%d]: invalid birth_date %q", i, *a.BirthDate)
			}
			animal.BirthDate = &birth
		}
		snapshot.Animals = append(snapshot.Animals, animal)
	}

	return snapshot, nil
}
