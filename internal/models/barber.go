package models

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Barber is a bookable resource. The form only relies on ID and Name.
type Barber struct {
	ID        int64     `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	SortOrder int64     `yaml:"sort_order" json:"sort_order"`
	IsActive  bool      `yaml:"is_active" json:"is_active"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// UnmarshalYAML treats a catalog entry without is_active as active.
func (b *Barber) UnmarshalYAML(value *yaml.Node) error {
	type plain Barber
	p := plain{IsActive: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*b = Barber(p)
	return nil
}

// Service is identified by Name within one catalog snapshot.
type Service struct {
	Name            string  `yaml:"name" json:"name"`
	Price           float64 `yaml:"price" json:"price"`
	DurationMinutes int     `yaml:"duration_minutes" json:"duration_minutes"`
}

// FindService looks a service up by name.
func FindService(services []Service, name string) (Service, bool) {
	for _, s := range services {
		if s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}

// DurationFor returns the duration of the named service, or fallback when the
// lookup misses or the catalog carries a non-positive value.
func DurationFor(services []Service, name string, fallback int) int {
	s, ok := FindService(services, name)
	if !ok || s.DurationMinutes <= 0 {
		return fallback
	}
	return s.DurationMinutes
}

func ContainsBarber(barbers []Barber, id int64) bool {
	for _, b := range barbers {
		if b.ID == id {
			return true
		}
	}
	return false
}
