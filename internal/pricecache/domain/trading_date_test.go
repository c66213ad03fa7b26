package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseTradingDate(t *testing.T) {
	tests := []struct {
		in      string
		want    TradingDate
		wantErr bool
	}{
		{"2024-01-10", NewTradingDate(2024, time.January, 10), false},
		{"2024-02-29", NewTradingDate(2024, time.February, 29), false},
		{"2023-02-29", TradingDate{}, true},
		{"2024/01/10", TradingDate{}, true},
		{"", TradingDate{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTradingDate(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestTradingDateArithmeticAndOrdering(t *testing.T) {
	d := NewTradingDate(2024, time.February, 28)
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Errorf("expected 2024-03-01, got %s", got)
	}
	if !d.Before(d.AddDays(1)) || !d.AddDays(1).After(d) {
		t.Errorf("ordering broken around %s", d)
	}
	if d.Compare(d) != 0 || !d.Equal(NewTradingDate(2024, time.February, 28)) {
		t.Errorf("expected equal dates")
	}
	if NewTradingDate(2023, time.December, 31).Compare(NewTradingDate(2024, time.January, 1)) != -1 {
		t.Errorf("year boundary ordering broken")
	}
	if NewTradingDate(2024, time.February, 30) != NewTradingDate(2024, time.March, 1) {
		t.Errorf("expected normalisation of Feb 30")
	}
}

func TestTradingDateOfIgnoresTime(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	ts := time.Date(2024, time.January, 10, 23, 59, 0, 0, loc)
	if got := TradingDateOf(ts); got != NewTradingDate(2024, time.January, 10) {
		t.Errorf("expected 2024-01-10, got %s", got)
	}
	if !TradingDateOf(time.Time{}).IsZero() {
		t.Errorf("zero time should map to zero date")
	}
}

func TestTradingDateJSON(t *testing.T) {
	p := InstrumentPrice{
		VendorID:     "V1",
		InstrumentID: "I1",
		PriceDate:    NewTradingDate(2024, time.January, 10),
		Price:        decimal.RequireFromString("100.25"),
	}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"vendor_id":"V1","instrument_id":"I1","price_date":"2024-01-10","price":"100.25"}`
	if string(b) != want {
		t.Errorf("expected %s, got %s", want, b)
	}

	var back InstrumentPrice
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !back.Equal(p) {
		t.Errorf("expected %+v, got %+v", p, back)
	}
}

func TestNewInstrumentPrice(t *testing.T) {
	d := NewTradingDate(2024, time.January, 10)
	if _, err := NewInstrumentPrice("V", "I", d, decimal.NewFromInt(-5)); err != nil {
		t.Errorf("negative prices carry no range validation: %v", err)
	}

	_, err := NewInstrumentPrice("V", "", d, decimal.Zero)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "instrument_id" {
		t.Errorf("expected instrument_id validation error, got %v", err)
	}
	_, err = NewInstrumentPrice("V", "I", TradingDate{}, decimal.Zero)
	if !errors.As(err, &verr) || verr.Field != "price_date" {
		t.Errorf("expected price_date validation error, got %v", err)
	}
}
