package localstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/Rohianon/folio/pkg/errors"
	"github.com/Rohianon/folio/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "local.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func TestWatchlist_AddIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	for _, sym := range []string{"aapl", " AAPL ", "msft"} {
		if _, err := s.AddToWatchlist(sym); err != nil {
			t.Fatalf("AddToWatchlist(%q) error = %v", sym, err)
		}
	}

	got, err := s.Watchlist()
	if err != nil {
		t.Fatalf("Watchlist() error = %v", err)
	}
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("Watchlist() = %v, want [AAPL MSFT]", got)
	}

	added, _ := s.AddToWatchlist("Aapl")
	if added {
		t.Error("re-adding should report no change")
	}

	if _, err := s.AddToWatchlist("  "); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("AddToWatchlist(blank) error = %v, want validation error", err)
	}
}

func TestWatchlist_Remove(t *testing.T) {
	s := newTestStore(t)
	s.AddToWatchlist("AAPL")
	s.AddToWatchlist("MSFT")

	removed, err := s.RemoveFromWatchlist("aapl")
	if err != nil || !removed {
		t.Fatalf("RemoveFromWatchlist() = %v, %v", removed, err)
	}
	removed, _ = s.RemoveFromWatchlist("GOOG")
	if removed {
		t.Error("removing an absent symbol should report false")
	}

	got, _ := s.Watchlist()
	if len(got) != 1 || got[0] != "MSFT" {
		t.Errorf("Watchlist() = %v, want [MSFT]", got)
	}
}

func TestAlerts_AddValidateRemove(t *testing.T) {
	s := newTestStore(t)

	alert, err := s.AddAlert("tcs", "above", 3600)
	if err != nil {
		t.Fatalf("AddAlert() error = %v", err)
	}
	if alert.Symbol != "TCS" || alert.Condition != models.AlertAbove {
		t.Errorf("AddAlert() = %+v", alert)
	}
	if _, err := s.AddAlert("INFY", models.AlertBelow, 1400); err != nil {
		t.Fatalf("AddAlert() error = %v", err)
	}

	invalid := []struct {
		name      string
		symbol    string
		condition models.AlertCondition
		price     float64
	}{
		{"blank symbol", "", models.AlertAbove, 10},
		{"bad condition", "TCS", "SIDEWAYS", 10},
		{"zero price", "TCS", models.AlertBelow, 0},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.AddAlert(tt.symbol, tt.condition, tt.price); !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("AddAlert() error = %v, want validation error", err)
			}
		})
	}

	removed, err := s.RemoveAlert(0)
	if err != nil || removed.Symbol != "TCS" {
		t.Fatalf("RemoveAlert(0) = %+v, %v", removed, err)
	}
	if _, err := s.RemoveAlert(5); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("RemoveAlert(5) error = %v, want not found", err)
	}

	alerts, _ := s.Alerts()
	if len(alerts) != 1 || alerts[0].Symbol != "INFY" {
		t.Errorf("Alerts() = %+v, want only INFY", alerts)
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	s := newTestStore(t)
	s.AddToWatchlist("AAPL")
	s.AddAlert("AAPL", models.AlertBelow, 100)

	reopened, err := Open(s.Path())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	watch, _ := reopened.Watchlist()
	alerts, _ := reopened.Alerts()
	if len(watch) != 1 || len(alerts) != 1 {
		t.Errorf("after reopen watchlist=%v alerts=%v", watch, alerts)
	}

	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
}

func TestStore_ReadsLegacyKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.json")
	legacy := `{"watchlist":["RELIANCE"],"priceAlerts":[{"symbol":"RELIANCE","condition":"ABOVE","price":2500}]}`
	if err := os.WriteFile(path, []byte(legacy), 0600); err != nil {
		t.Fatal(err)
	}

	s, _ := Open(path)
	watch, err := s.Watchlist()
	if err != nil || len(watch) != 1 || watch[0] != "RELIANCE" {
		t.Errorf("Watchlist() = %v, %v", watch, err)
	}
	alerts, _ := s.Alerts()
	if len(alerts) != 1 || alerts[0].Price != 2500 {
		t.Errorf("Alerts() = %+v", alerts)
	}
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	watch, err := s.Watchlist()
	if err != nil || len(watch) != 0 {
		t.Errorf("Watchlist() = %v, %v, want empty", watch, err)
	}
}
