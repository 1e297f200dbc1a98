package atoms

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// StoreFilename is the canonical name of the atom store inside a project
// data directory.
const StoreFilename = "atoms.jsonl"

var (
	// ErrCorruptStore indicates a record failed structural validation.
	ErrCorruptStore = errors.New("corrupt atom store")
	// ErrIdentityViolation indicates two atoms share an id. Downstream
	// entity-to-atom mapping treats id uniqueness as a hard precondition, so
	// the store must be repaired before any segmentation proceeds.
	ErrIdentityViolation = errors.New("atom identity violation")
)

// Store reads and writes the JSONL atom store of one project.
type Store struct {
	path string
}

// NewStore returns a store rooted at the project data directory.
func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, StoreFilename)}
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the backing file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the full atom list in order. Records missing required fields
// fail with ErrCorruptStore; duplicate ids fail with ErrIdentityViolation.
func (s *Store) Load() ([]Atom, error) {
	atoms, err := s.loadRaw()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(atoms))
	for _, atom := range atoms {
		if _, dup := seen[atom.AtomID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s (run repair before segmenting)", ErrIdentityViolation, atom.AtomID)
		}
		seen[atom.AtomID] = struct{}{}
	}
	return atoms, nil
}

// Repair renumbers every atom positionally and rewrites the store. Safe to
// run on a healthy store; renumbering is idempotent.
func (s *Store) Repair() ([]Atom, error) {
	atoms, err := s.loadRaw()
	if err != nil {
		return nil, err
	}
	repaired := AssignUniqueIDs(atoms)
	if err := s.Save(repaired); err != nil {
		return nil, err
	}
	return repaired, nil
}

// Save atomically replaces the store contents.
func (s *Store) Save(atoms []Atom) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure data directory: %w", err)
	}
	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create atom store: %w", err)
	}
	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, atom := range atoms {
		if err := encoder.Encode(atom); err != nil {
			_ = file.Close()
			return fmt.Errorf("encode atom %s: %w", atom.AtomID, err)
		}
	}
	if err := writer.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flush atom store: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close atom store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace atom store: %w", err)
	}
	return nil
}

func (s *Store) loadRaw() ([]Atom, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open atom store: %w", err)
	}
	defer file.Close()

	var atoms []Atom
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var atom Atom
		if err := json.Unmarshal(raw, &atom); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorruptStore, line, err)
		}
		if err := atom.Validate(); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorruptStore, line, err)
		}
		atoms = append(atoms, atom)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read atom store: %w", err)
	}
	return atoms, nil
}
