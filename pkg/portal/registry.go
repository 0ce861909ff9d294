package portal

import (
	"fmt"
	"strings"

	"github.com/MCIKIDS/mci.kids/pkg/feed"
	"github.com/MCIKIDS/mci.kids/pkg/models"
)

// Register stores a family sign-up form. Name and phone are required.
func (s *State) Register(form models.Registration) (models.Registration, error) {
	var out models.Registration
	err := s.mutate("registration_add", func() error {
		form.Name = strings.TrimSpace(form.Name)
		form.Phone = strings.TrimSpace(form.Phone)
		if form.Name == "" || form.Phone == "" {
			return fmt.Errorf("%w: name and phone are required", feed.ErrInvalidInput)
		}
		form.ID = s.newID()
		form.CreatedAt = s.now().UTC()
		out = form
		s.registrations = append([]models.Registration{form}, s.registrations...)
		return nil
	})
	return out, err
}

// Registrations lists sign-ups, newest first, to signed-in staff.
func (s *State) Registrations(viewer models.Viewer) ([]models.Registration, error) {
	if err := requireResolved(viewer); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Registration{}, s.registrations...), nil
}

// AddFile lists a shared material.
func (s *State) AddFile(viewer models.Viewer, name, url string) (models.File, error) {
	var out models.File
	err := s.mutate("file_add", func() error {
		if err := requireCoordinator(viewer); err != nil {
			return err
		}
		n := strings.TrimSpace(name)
		if n == "" {
			return fmt.Errorf("%w: file name is empty", feed.ErrInvalidInput)
		}
		out = models.File{
			ID:        s.newID(),
			Name:      n,
			URL:       strings.TrimSpace(url),
			AddedBy:   strings.TrimSpace(viewer.Name),
			CreatedAt: s.now().UTC(),
		}
		s.files = append(s.files, out)
		return nil
	})
	return out, err
}

func (s *State) Files() []models.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.File{}, s.files...)
}
