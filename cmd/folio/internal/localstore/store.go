package localstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/models"
)

// Data is the on-disk layout. Key names are fixed so existing files keep
// loading.
type Data struct {
	Watchlist   []string            `json:"watchlist"`
	PriceAlerts []models.PriceAlert `json:"priceAlerts"`
}

// Store persists the watchlist and price alerts to a JSON file. Every
// mutation is written through immediately.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// DefaultPath is ~/.folio/local.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".folio", "local.json"), nil
}

// Open returns a store backed by path, or DefaultPath when path is empty.
// The file is created lazily on first write.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Store{path: path, now: time.Now}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() (*Data, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Data{}, nil
		}
		return nil, err
	}

	var d Data
	if len(strings.TrimSpace(string(data))) == 0 {
		return &d, nil
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return &d, nil
}

func (s *Store) save(d *Data) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".local-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *Store) update(fn func(*Data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(d); err != nil {
		return err
	}
	return s.save(d)
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// =============================================================================
// Watchlist
// =============================================================================

func (s *Store) Watchlist() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.load()
	if err != nil {
		return nil, err
	}
	return d.Watchlist, nil
}

// AddToWatchlist adds symbol once. It reports whether the list changed.
func (s *Store) AddToWatchlist(symbol string) (bool, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return false, apperrors.ErrValidation.WithMessage("symbol is required")
	}

	added := false
	err := s.update(func(d *Data) error {
		if slices.Contains(d.Watchlist, symbol) {
			return nil
		}
		d.Watchlist = append(d.Watchlist, symbol)
		added = true
		return nil
	})
	return added, err
}

// RemoveFromWatchlist reports whether symbol was present.
func (s *Store) RemoveFromWatchlist(symbol string) (bool, error) {
	symbol = normalizeSymbol(symbol)

	removed := false
	err := s.update(func(d *Data) error {
		i := slices.Index(d.Watchlist, symbol)
		if i < 0 {
			return nil
		}
		d.Watchlist = slices.Delete(d.Watchlist, i, i+1)
		removed = true
		return nil
	})
	return removed, err
}

// =============================================================================
// Price alerts
// =============================================================================

func (s *Store) Alerts() ([]models.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.load()
	if err != nil {
		return nil, err
	}
	return d.PriceAlerts, nil
}

// ValidateAlert checks an alert before it is stored.
func ValidateAlert(symbol string, condition models.AlertCondition, price float64) error {
	var problems []string
	if normalizeSymbol(symbol) == "" {
		problems = append(problems, "symbol is required")
	}
	if condition != models.AlertAbove && condition != models.AlertBelow {
		problems = append(problems, "condition must be ABOVE or BELOW")
	}
	if price <= 0 {
		problems = append(problems, "price must be greater than 0")
	}
	if len(problems) > 0 {
		return apperrors.ErrValidation.WithMessage(strings.Join(problems, "; ")).WithDetails(problems)
	}
	return nil
}

func (s *Store) AddAlert(symbol string, condition models.AlertCondition, price float64) (models.PriceAlert, error) {
	condition = models.AlertCondition(strings.ToUpper(strings.TrimSpace(string(condition))))
	if err := ValidateAlert(symbol, condition, price); err != nil {
		return models.PriceAlert{}, err
	}

	alert := models.PriceAlert{
		Symbol:    normalizeSymbol(symbol),
		Condition: condition,
		Price:     price,
		CreatedAt: s.now().UTC(),
	}
	err := s.update(func(d *Data) error {
		d.PriceAlerts = append(d.PriceAlerts, alert)
		return nil
	})
	return alert, err
}

func (s *Store) RemoveAlert(index int) (models.PriceAlert, error) {
	var removed models.PriceAlert
	err := s.update(func(d *Data) error {
		if index < 0 || index >= len(d.PriceAlerts) {
			return apperrors.ErrNotFound.WithMessage(fmt.Sprintf("no alert at index %d", index))
		}
		removed = d.PriceAlerts[index]
		d.PriceAlerts = slices.Delete(d.PriceAlerts, index, index+1)
		return nil
	})
	return removed, err
}
