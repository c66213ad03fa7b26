package domain

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPriceIndexRecordAndGet(t *testing.T) {
	d := NewTradingDate(2024, time.January, 3)
	dual := NewDualIndex(d)
	idx := dual.byInstrument
	p1 := InstrumentPrice{VendorID: "V1", InstrumentID: "I1", PriceDate: d, Price: decimal.NewFromInt(1)}
	p2 := InstrumentPrice{VendorID: "V2", InstrumentID: "I1", PriceDate: d, Price: decimal.NewFromInt(2)}

	dual.Record(p1)
	dual.Record(p2)

	got := idx.get("I1")
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if !got["V2"].Equal(p2) {
		t.Errorf("expected %+v, got %+v", p2, got["V2"])
	}

	empty := idx.get("missing")
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil map, got %v", empty)
	}
	if _, ok := idx.lookup("missing"); ok {
		t.Errorf("get must not create buckets")
	}
}

func TestRecordConcurrentSiblingInserts(t *testing.T) {
	d := NewTradingDate(2024, time.January, 3)
	idx := NewDualIndex(d)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vendor := fmt.Sprintf("V%d", i)
			idx.Record(InstrumentPrice{VendorID: vendor, InstrumentID: "I1", PriceDate: d})
		}(i)
	}
	wg.Wait()

	if got := len(idx.InstrumentPrices("I1")); got != writers {
		t.Errorf("expected %d sibling inserts, got %d", writers, got)
	}
	for i := 0; i < writers; i++ {
		vendor := fmt.Sprintf("V%d", i)
		if _, ok := idx.VendorPrices(vendor)["I1"]; !ok {
			t.Errorf("vendor %s missing I1", vendor)
		}
	}
}

func TestDualIndexRecordKeepsMappingsSymmetric(t *testing.T) {
	d := NewTradingDate(2024, time.January, 4)
	idx := NewDualIndex(d)

	idx.Record(InstrumentPrice{VendorID: "V1", InstrumentID: "I1", PriceDate: d, Price: decimal.NewFromInt(1)})
	idx.Record(InstrumentPrice{VendorID: "V1", InstrumentID: "I2", PriceDate: d, Price: decimal.NewFromInt(2)})
	idx.Record(InstrumentPrice{VendorID: "V2", InstrumentID: "I1", PriceDate: d, Price: decimal.NewFromInt(3)})

	if idx.Date() != d {
		t.Errorf("expected date %s, got %s", d, idx.Date())
	}
	if got := idx.Len(); got != 3 {
		t.Errorf("expected 3 records, got %d", got)
	}
	if got := idx.Instruments(); len(got) != 2 || got[0] != "I1" || got[1] != "I2" {
		t.Errorf("unexpected instruments %v", got)
	}
	if got := idx.Vendors(); len(got) != 2 || got[0] != "V1" || got[1] != "V2" {
		t.Errorf("unexpected vendors %v", got)
	}

	for _, instrument := range idx.Instruments() {
		for vendor, p := range idx.InstrumentPrices(instrument) {
			mirror, ok := idx.VendorPrices(vendor)[instrument]
			if !ok || !mirror.Equal(p) {
				t.Errorf("mirror missing for %s/%s", vendor, instrument)
			}
		}
	}
}

func TestDualIndexConcurrentReadersNeverSeeHalfWrites(t *testing.T) {
	d := NewTradingDate(2024, time.January, 5)
	idx := NewDualIndex(d)

	const records = 500
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			for vendor, p := range idx.InstrumentPrices("I") {
				if _, ok := idx.VendorPrices(vendor)["I"]; !ok {
					t.Errorf("record %+v visible by instrument but not by vendor", p)
					return
				}
			}
		}
	}()

	for i := 0; i < records; i++ {
		vendor := fmt.Sprintf("V%d", i)
		idx.Record(InstrumentPrice{VendorID: vendor, InstrumentID: "I", PriceDate: d, Price: decimal.NewFromInt(int64(i))})
	}
	close(done)
	wg.Wait()

	if got := len(idx.InstrumentPrices("I")); got != records {
		t.Errorf("expected %d vendors, got %d", records, got)
	}
}
