package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/vetclinic-scheduler/internal/persistence"
)

// detailLoader resolves the directory records of appointments, memoising lookups so
// a page of slots sharing a clinic or animal only hits storage once per record.
type detailLoader struct {
	directory Directory
	clinics   map[string]*Clinic
	animals   map[string]*Animal
	tutors    map[string]*Tutor
}

func newDetailLoader(directory Directory) *detailLoader {
	return &detailLoader{
		directory: directory,
		clinics:   make(map[string]*Clinic),
		animals:   make(map[string]*Animal),
		tutors:    make(map[string]*Tutor),
	}
}

// remember seeds the memo with records the caller already fetched.
func (l *detailLoader) remember(clinic *Clinic, animal *Animal, tutor *Tutor) {
	if clinic != nil {
		l.clinics[clinic.ID] = clinic
	}
	if animal != nil {
		l.animals[animal.ID] = animal
	}
	if tutor != nil {
		l.tutors[tutor.ID] = tutor
	}
}

func (l *detailLoader) load(ctx context.Context, appointment Appointment) (AppointmentDetail, error) {
	detail := AppointmentDetail{Appointment: appointment}
	if l == nil || l.directory == nil {
		return detail, nil
	}

	clinic, err := l.clinic(ctx, appointment.ClinicID)
	if err != nil {
		return AppointmentDetail{}, err
	}
	detail.Clinic = clinic

	animal, err := l.animal(ctx, appointment.AnimalID)
	if err != nil {
		return AppointmentDetail{}, err
	}
	detail.Animal = animal

	if animal != nil {
		tutor, err := l.tutor(ctx, animal.TutorID)
		if err != nil {
			return AppointmentDetail{}, err
		}
		detail.Tutor = tutor
	}
	return detail, nil
}

func (l *detailLoader) clinic(ctx context.Context, id string) (*Clinic, error) {
	if cached, ok := l.clinics[id]; ok {
		return cached, nil
	}
	clinic, err := l.directory.GetClinic(ctx, id)
	if err != nil {
		if isMissing(err) {
			l.clinics[id] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("get clinic %s: %w", id, err)
	}
	l.clinics[id] = &clinic
	return &clinic, nil
}

func (l *detailLoader) animal(ctx context.Context, id string) (*Animal, error) {
	if cached, ok := l.animals[id]; ok {
		return cached, nil
	}
	animal, err := l.directory.GetAnimal(ctx, id)
	if err != nil {
		if isMissing(err) {
			l.animals[id] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("get animal %s: %w", id, err)
	}
	l.animals[id] = &animal
	return &animal, nil
}

func (l *detailLoader) tutor(ctx context.Context, id string) (*Tutor, error) {
	if cached, ok := l.tutors[id]; ok {
		return cached, nil
	}
	tutor, err := l.directory.GetTutor(ctx, id)
	if err != nil {
		if isMissing(err) {
			l.tutors[id] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("get tutor %s: %w", id, err)
	}
	l.tutors[id] = &tutor
	return &tutor, nil
}

func isMissing(err error) bool {
	return errors.Is(err, persistence.ErrNotFound) || errors.Is(err, ErrNotFound)
}
