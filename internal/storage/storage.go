package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bilgisen/newskit/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("project not found")
	ErrNotArray             = errors.New("import payload must be a JSON array of projects")
	ErrConfirmationRequired = errors.New("delete requires confirmation")
)

// ImportResult reports how an import was merged
type ImportResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// ProjectStore keeps saved projects as one JSON array, rewritten on every change
type ProjectStore struct {
	backend Backend
	mu      sync.RWMutex
	now     func() time.Time
}

func NewProjectStore(backend Backend) *ProjectStore {
	return &ProjectStore{
		backend: backend,
		now:     time.Now,
	}
}

// Close releases the backend
func (s *ProjectStore) Close() error {
	return s.backend.Close()
}

// List returns all projects, most recently created first
func (s *ProjectStore) List(ctx context.Context) ([]models.SavedProject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.load()
}

// Get retrieves a project by its ID
func (s *ProjectStore) Get(ctx context.Context, id string) (*models.SavedProject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range projects {
		if projects[i].ID == id {
			return &projects[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Save inserts a new project at the front or replaces an existing one in place.
// A missing ID is generated, SavedAt is refreshed and images are deduped and capped.
func (s *ProjectStore) Save(ctx context.Context, project models.SavedProject) (*models.SavedProject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(project.NewsItem.Title) == "" {
		return nil, fmt.Errorf("project news item requires a title")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.load()
	if err != nil {
		return nil, err
	}

	project.ID = strings.TrimSpace(project.ID)
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	project.SavedAt = s.now().UTC()
	project.Images = models.DedupeImages(project.Images)

	replaced := false
	for i := range projects {
		if projects[i].ID == project.ID {
			projects[i] = project
			replaced = true
			break
		}
	}
	if !replaced {
		projects = append([]models.SavedProject{project}, projects...)
	}

	if err := s.persist(projects); err != nil {
		return nil, err
	}
	return &project, nil
}

// Delete removes a project by its ID. confirm must be true.
func (s *ProjectStore) Delete(ctx context.Context, id string, confirm bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !confirm {
		return ErrConfirmationRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.load()
	if err != nil {
		return err
	}
	for i := range projects {
		if projects[i].ID == id {
			projects = append(projects[:i], projects[i+1:]...)
			return s.persist(projects)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Export serializes every project, or only the one with the given id, as a JSON array
func (s *ProjectStore) Export(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects, err := s.load()
	if err != nil {
		return nil, err
	}

	if id != "" {
		var match []models.SavedProject
		for _, p := range projects {
			if p.ID == id {
				match = append(match, p)
				break
			}
		}
		if match == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		projects = match
	}

	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal projects: %w", err)
	}
	return data, nil
}

// Import merges an exported array by id. Entries whose id is already stored, is
// repeated in the payload, or is missing are skipped.
func (s *ProjectStore) Import(ctx context.Context, data []byte) (ImportResult, error) {
	var result ImportResult
	if err := ctx.Err(); err != nil {
		return result, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return result, ErrNotArray
	}
	var incoming []models.SavedProject
	if err := json.Unmarshal(trimmed, &incoming); err != nil {
		return result, fmt.Errorf("%w: %v", ErrNotArray, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	projects, err := s.load()
	if err != nil {
		return result, err
	}

	known := make(map[string]struct{}, len(projects)+len(incoming))
	for _, p := range projects {
		known[p.ID] = struct{}{}
	}
	for _, p := range incoming {
		p.ID = strings.TrimSpace(p.ID)
		if _, dup := known[p.ID]; dup || p.ID == "" {
			result.Skipped++
			continue
		}
		p.Images = models.DedupeImages(p.Images)
		known[p.ID] = struct{}{}
		projects = append(projects, p)
		result.Added++
	}

	if result.Added == 0 {
		return result, nil
	}
	if err := s.persist(projects); err != nil {
		return ImportResult{}, err
	}
	return result, nil
}

func (s *ProjectStore) load() ([]models.SavedProject, error) {
	data, err := s.backend.Load()
	if err != nil {
		return nil, err
	}
	projects := []models.SavedProject{}
	if len(bytes.TrimSpace(data)) == 0 {
		return projects, nil
	}
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to unmarshal projects: %w", err)
	}
	return projects, nil
}

func (s *ProjectStore) persist(projects []models.SavedProject) error {
	data, err := json.Marshal(projects)
	if err != nil {
		return fmt.Errorf("failed to marshal projects: %w", err)
	}
	if err := s.backend.Save(data); err != nil {
		return fmt.Errorf("failed to save projects: %w", err)
	}
	return nil
}
