package models

import (
	"encoding/json"
	"testing"
)

func TestHolding_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantSymbol string
		wantHolder int64
		wantStock  bool
	}{
		{
			name:       "flat symbol",
			input:      `{"id":1,"holderId":7,"stockSymbol":"aapl","quantity":10,"avgPrice":100}`,
			wantSymbol: "AAPL",
			wantHolder: 7,
		},
		{
			name:       "embedded stock",
			input:      `{"id":2,"quantity":5,"avgPrice":200,"stock":{"symbol":"MSFT","name":"Microsoft","sector":"Tech","currentPrice":190}}`,
			wantSymbol: "MSFT",
			wantStock:  true,
		},
		{
			name:       "nested holder",
			input:      `{"id":3,"stockSymbol":"TCS","quantity":1,"avgPrice":3500,"holder":{"id":4,"name":"Asha"}}`,
			wantSymbol: "TCS",
			wantHolder: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var h Holding
			if err := json.Unmarshal([]byte(tt.input), &h); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if h.StockSymbol != tt.wantSymbol {
				t.Errorf("StockSymbol = %v, want %v", h.StockSymbol, tt.wantSymbol)
			}
			if h.HolderID != tt.wantHolder {
				t.Errorf("HolderID = %v, want %v", h.HolderID, tt.wantHolder)
			}
			if (h.Stock != nil) != tt.wantStock {
				t.Errorf("Stock present = %v, want %v", h.Stock != nil, tt.wantStock)
			}
		})
	}
}

func TestRecommendation_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantSymbol string
		wantName   string
		wantAction Action
		wantScore  float64
	}{
		{
			name:       "flat",
			input:      `{"symbol":"INFY","name":"Infosys","action":"BUY","score":82,"reason":"momentum"}`,
			wantSymbol: "INFY",
			wantName:   "Infosys",
			wantAction: ActionBuy,
			wantScore:  82,
		},
		{
			name:       "nested stock",
			input:      `{"stock":{"symbol":"HDFC","name":"HDFC Bank"},"action":"strong sell","score":30}`,
			wantSymbol: "HDFC",
			wantName:   "HDFC Bank",
			wantAction: ActionSell,
			wantScore:  30,
		},
		{
			name:       "legacy shape",
			input:      `{"stockSymbol":"TCS","stockName":"Tata Consultancy","recommendation":"HOLD","confidenceScore":64}`,
			wantSymbol: "TCS",
			wantName:   "Tata Consultancy",
			wantAction: ActionHold,
			wantScore:  64,
		},
		{
			name:       "unknown action",
			input:      `{"symbol":"X","action":"ACCUMULATE"}`,
			wantSymbol: "X",
			wantAction: ActionWatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Recommendation
			if err := json.Unmarshal([]byte(tt.input), &r); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if r.Symbol != tt.wantSymbol {
				t.Errorf("Symbol = %v, want %v", r.Symbol, tt.wantSymbol)
			}
			if r.Name != tt.wantName {
				t.Errorf("Name = %v, want %v", r.Name, tt.wantName)
			}
			if r.Action != tt.wantAction {
				t.Errorf("Action = %v, want %v", r.Action, tt.wantAction)
			}
			if r.Score != tt.wantScore {
				t.Errorf("Score = %v, want %v", r.Score, tt.wantScore)
			}
		})
	}
}

func TestStock_OptionalFields(t *testing.T) {
	var s Stock
	if err := json.Unmarshal([]byte(`{"symbol":"AAPL","currentPrice":120,"volume":0}`), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if s.Volume == nil || *s.Volume != 0 {
		t.Errorf("Volume = %v, want pointer to 0", s.Volume)
	}
	if s.PERatio != nil {
		t.Errorf("PERatio = %v, want nil", *s.PERatio)
	}
}

func TestSector_Label(t *testing.T) {
	if got := (Sector{Name: "IT", DisplayName: "Information Technology"}).Label(); got != "Information Technology" {
		t.Errorf("Label() = %v", got)
	}
	if got := (Sector{Name: "IT"}).Label(); got != "IT" {
		t.Errorf("Label() = %v", got)
	}
}
