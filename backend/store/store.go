// ABOUTME: Filesystem artifact store keeping wiring documents per fabric directory
// ABOUTME: Writes are atomic (temp file + rename) under a per-fabric file lock that reads share

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/markalston/fabric-planner/backend/services"
)

const lockFileName = ".fabric.lock"

// lockRetryDelay is how often a blocked Save retries the fabric lock
const lockRetryDelay = 50 * time.Millisecond

var (
	// ErrNotFound is returned when a fabric has no saved artifacts
	ErrNotFound = errors.New("fabric not found")
	// ErrLocked is returned when the fabric lock could not be acquired
	ErrLocked = errors.New("fabric is locked")
)

// FabricStore persists wiring documents under <root>/<fabricID>/
type FabricStore struct {
	root string
}

// New creates a store rooted at dir
func New(root string) *FabricStore {
	return &FabricStore{root: root}
}

// Root returns the store's root directory
func (s *FabricStore) Root() string {
	return s.root
}

func (s *FabricStore) dir(fabricID string) (string, error) {
	if err := services.ValidateFabricID(fabricID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, fabricID), nil
}

// Save writes the three documents of a fabric. Existing documents are
// replaced atomically, one file at a time, under the fabric lock.
func (s *FabricStore) Save(ctx context.Context, fabricID string, docs services.Documents) error {
	dir, err := s.dir(fabricID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create fabric directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		_ = lock.Close()
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrLocked, fabricID)
		}
		return fmt.Errorf("failed to lock fabric %s: %w", fabricID, err)
	}
	if !ok {
		_ = lock.Close()
		return fmt.Errorf("%w: %s", ErrLocked, fabricID)
	}
	defer lock.Close()

	for name, data := range docs.ByName() {
		if err := writeAtomic(dir, name+".yaml", data); err != nil {
			return err
		}
	}

	slog.Info("Fabric saved", "fabric", fabricID, "dir", dir)
	return nil
}

// Load reads the documents of a fabric under a shared lock, so a concurrent
// Save never yields documents from two generations, and checks they parse
func (s *FabricStore) Load(ctx context.Context, fabricID string) (services.Documents, error) {
	dir, err := s.dir(fabricID)
	if err != nil {
		return services.Documents{}, err
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return services.Documents{}, fmt.Errorf("%w: %s", ErrNotFound, fabricID)
	}

	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		_ = lock.Close()
		if ctx.Err() != nil {
			return services.Documents{}, fmt.Errorf("%w: %s", ErrLocked, fabricID)
		}
		return services.Documents{}, fmt.Errorf("failed to lock fabric %s: %w", fabricID, err)
	}
	if !ok {
		_ = lock.Close()
		return services.Documents{}, fmt.Errorf("%w: %s", ErrLocked, fabricID)
	}
	defer lock.Close()

	read := func(name string) ([]byte, error) {
		data, err := os.ReadFile(filepath.Join(dir, name+".yaml"))
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, fabricID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		return data, nil
	}

	var docs services.Documents
	if docs.Switches, err = read(services.DocumentSwitches); err != nil {
		return services.Documents{}, err
	}
	if docs.Servers, err = read(services.DocumentServers); err != nil {
		return services.Documents{}, err
	}
	if docs.Connections, err = read(services.DocumentConnections); err != nil {
		return services.Documents{}, err
	}

	if _, err := services.ParseDocuments(docs); err != nil {
		return services.Documents{}, fmt.Errorf("fabric %s: %w", fabricID, err)
	}
	return docs, nil
}

// List returns the ids of every saved fabric, sorted
func (s *FabricStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list fabrics: %w", err)
	}

	ids := []string{}
	for _, e := range entries {
		if !e.IsDir() || services.ValidateFabricID(e.Name()) != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, e.Name(), services.DocumentSwitches+".yaml")); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Writable reports whether the root directory exists (or can be created)
// and accepts new files
func (s *FabricStore) Writable() bool {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return false
	}
	f, err := os.CreateTemp(s.root, ".probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}

func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("failed to chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
