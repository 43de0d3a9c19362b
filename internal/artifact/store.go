package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ticketforge/internal/utils"
)

// ErrNotFound is returned by Get for a missing object.
var ErrNotFound = errors.New("artifact not found")

// SourceName is the object name of a project's sanitized source text.
const SourceName = "source.txt"

// Store keeps files that belong to a project, outside the project document.
type Store interface {
	Put(ctx context.Context, projectID, name string, content []byte, contentType string) error
	Get(ctx context.Context, projectID, name string) ([]byte, error)
	List(ctx context.Context, projectID string) ([]string, error)
}

func projectPrefix(projectID string) string {
	return "projects/" + strings.TrimSpace(projectID) + "/"
}

func objectKey(projectID, name string) (string, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return "", fmt.Errorf("project id is required")
	}
	if strings.ContainsAny(projectID, `/\`) {
		return "", fmt.Errorf("invalid project id %q", projectID)
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("name is required")
	}
	return projectPrefix(projectID) + utils.SafeBaseName(name), nil
}

// ArchiveSource stores the sanitized brief under projects/<id>/source.txt.
func ArchiveSource(ctx context.Context, s Store, projectID, text string) error {
	if s == nil {
		return nil
	}
	return s.Put(ctx, projectID, SourceName, []byte(text), "text/plain; charset=utf-8")
}
