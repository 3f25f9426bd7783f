// Package docs stores the user's dictated documents as markdown files
// under a per-user directory.
package docs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned for a document that does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when creating a document that already exists.
	ErrExists = errors.New("document already exists")
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// Store keeps documents below a root directory.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore creates the root directory if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create document root: %w", err)
	}
	return &Store{root: root}, nil
}

// fileName maps a spoken document name to a file name. Names that
// differ only in case or punctuation refer to the same document.
func fileName(name string) (string, error) {
	base := unsafeChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	base = strings.Trim(base, "-.")
	if base == "" {
		return "", fmt.Errorf("invalid document name %q", name)
	}
	return base + ".md", nil
}

func (s *Store) path(userID, name string) (string, error) {
	f, err := fileName(name)
	if err != nil {
		return "", err
	}
	dir, err := fileName(userID)
	if err != nil {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	return filepath.Join(s.root, strings.TrimSuffix(dir, ".md"), f), nil
}

// Create makes a new document whose first line is its title.
func (s *Store) Create(userID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.path(userID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("create user directory: %w", err)
	}

	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "# %s\n\n", strings.TrimSpace(name))
	return err
}

// InsertText puts text at the start of the document body, right after
// the title line.
func (s *Store) InsertText(userID, name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.path(userID, name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	content := string(data)
	head, body := "", content
	if strings.HasPrefix(content, "# ") {
		if i := strings.Index(content, "\n\n"); i >= 0 {
			head, body = content[:i+2], content[i+2:]
		}
	}

	updated := head + strings.TrimSpace(text) + "\n\n" + body
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, []byte(updated), 0o640); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return os.Rename(tmp, p)
}

// Read returns the document contents.
func (s *Store) Read(userID, name string) (string, error) {
	p, err := s.path(userID, name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return string(data), err
}
