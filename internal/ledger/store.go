package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sabq4org/so7ba.ai/internal/contracts"
	"github.com/sabq4org/so7ba.ai/pkg/logger"
)

// ErrNotFound no ledger entry matched
var ErrNotFound = errors.New("ledger entry not found")

// Store persists positions as a JSON array in one file.
// ⭐ SSOT: 포지션 원장 읽기/쓰기는 여기서만
//
// Every mutation is a whole-file read-modify-write. The mutex serializes
// callers inside one process; separate processes must not run concurrently.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *logger.Logger
}

// NewStore creates a ledger store for path
func NewStore(path string, log *logger.Logger) *Store {
	return &Store{path: path, logger: log.WithComponent("ledger")}
}

// Path returns the ledger file path
func (s *Store) Path() string {
	return s.path
}

// Load reads all positions. A missing file is an empty ledger.
func (s *Store) Load() ([]contracts.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save replaces the ledger contents atomically
func (s *Store) Save(positions []contracts.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(positions)
}

// Open appends a new position with id = max(id)+1 and returns it
func (s *Store) Open(p contracts.Position) (contracts.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.load()
	if err != nil {
		return contracts.Position{}, err
	}

	maxID := 0
	for _, existing := range positions {
		if existing.ID > maxID {
			maxID = existing.ID
		}
	}
	p.ID = maxID + 1
	positions = append(positions, p)

	if err := s.save(positions); err != nil {
		return contracts.Position{}, err
	}

	s.logger.WithFields(map[string]interface{}{
		"id":       p.ID,
		"contract": p.Contract().String(),
		"quantity": p.QuantityOpened,
		"entry":    p.EntryPrice,
	}).Info("Position opened")
	return p, nil
}

// Update applies fn to the entry with id and saves. Nothing is written if fn fails.
func (s *Store) Update(id int, fn func(p *contracts.Position) error) (contracts.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.load()
	if err != nil {
		return contracts.Position{}, err
	}

	for i := range positions {
		if positions[i].ID != id {
			continue
		}
		if err := fn(&positions[i]); err != nil {
			return contracts.Position{}, fmt.Errorf("update position %d: %w", id, err)
		}
		if err := s.save(positions); err != nil {
			return contracts.Position{}, err
		}
		return positions[i], nil
	}
	return contracts.Position{}, fmt.Errorf("position %d: %w", id, ErrNotFound)
}

// CloseManual applies a manual sale to the first OPEN entry matching the contract.
// Selling the remaining quantity (or more) closes it with reason MANUAL.
func (s *Store) CloseManual(match contracts.OptionContract, qty int, price float64, at time.Time) (contracts.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	positions, err := s.load()
	if err != nil {
		return contracts.Position{}, err
	}

	for i := range positions {
		p := &positions[i]
		if !p.IsOpen() || !p.Matches(match) {
			continue
		}
		if qty > 0 && qty < p.QuantityRemaining {
			err = p.Reduce(qty)
		} else {
			err = p.Close(price, contracts.CloseManual, at)
		}
		if err != nil {
			return contracts.Position{}, fmt.Errorf("manual close %s: %w", match, err)
		}
		if err := s.save(positions); err != nil {
			return contracts.Position{}, err
		}
		return *p, nil
	}
	return contracts.Position{}, fmt.Errorf("open position for %s: %w", match, ErrNotFound)
}

// OpenPositions returns OPEN entries in ledger order
func (s *Store) OpenPositions() ([]contracts.Position, error) {
	positions, err := s.Load()
	if err != nil {
		return nil, err
	}
	open := make([]contracts.Position, 0, len(positions))
	for _, p := range positions {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	return open, nil
}

// OpenCount number of OPEN entries
func (s *Store) OpenCount() (int, error) {
	open, err := s.OpenPositions()
	if err != nil {
		return 0, err
	}
	return len(open), nil
}

// ============================================================================
// File I/O
// ============================================================================

func (s *Store) load() ([]contracts.Position, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []contracts.Position{}, nil
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	if len(data) == 0 {
		return []contracts.Position{}, nil
	}

	var positions []contracts.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger: %w", err)
	}
	if positions == nil {
		positions = []contracts.Position{}
	}
	return positions, nil
}

// save writes temp file -> fsync -> rename in the same directory
func (s *Store) save(positions []contracts.Position) error {
	if positions == nil {
		positions = []contracts.Position{}
	}
	data, err := json.MarshalIndent(positions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp ledger: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename ledger: %w", err)
	}
	return nil
}
