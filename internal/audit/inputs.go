package audit

import (
	"time"

	"github.com/agrimacro/agrimacro/internal/bundle"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/indicators"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
)

// Inputs is everything the gate looks at, read once from the data directory.
// 파일이 없으면 nil 로 남고, 해당 check 가 그 부재를 판단
type Inputs struct {
	Date time.Time
	Now  time.Time

	// adapter → latest snapshot (없으면 키 자체가 없음)
	Snapshots map[string]*contracts.RawSnapshot

	History contracts.PriceHistory
	Spreads *contracts.SpreadsReport
	Stocks  *contracts.StocksWatch
	Report  *contracts.ReportDaily
}

// Snapshot returns an adapter's snapshot or nil
func (in *Inputs) Snapshot(adapter string) *contracts.RawSnapshot {
	if in.Snapshots == nil {
		return nil
	}
	return in.Snapshots[adapter]
}

// decode decodes a usable snapshot payload; false when absent or unreadable
func (in *Inputs) decode(adapter string, v interface{}) bool {
	snap := in.Snapshot(adapter)
	if !snap.Usable() {
		return false
	}
	return snap.Decode(v) == nil
}

// LoadInputs reads the gate inputs for the given adapters.
// 게이트는 에러를 반환하지 않음: 읽지 못한 파일은 없는 것으로 취급
func LoadInputs(p paths.Paths, adapters []string, date, now time.Time) *Inputs {
	in := &Inputs{
		Date:      date,
		Now:       now,
		Snapshots: make(map[string]*contracts.RawSnapshot, len(adapters)),
	}

	for _, name := range adapters {
		var snap contracts.RawSnapshot
		if err := store.ReadJSON(p.Latest(name), &snap); err == nil {
			in.Snapshots[name] = &snap
		}
	}

	var history contracts.PriceHistory
	if err := store.ReadJSON(p.PriceHistory(), &history); err == nil {
		in.History = history
	}

	var spreads contracts.SpreadsReport
	if err := store.ReadJSON(p.ProcessedFile(indicators.FileSpreads), &spreads); err == nil {
		in.Spreads = &spreads
	}

	var stocks contracts.StocksWatch
	if err := store.ReadJSON(p.ProcessedFile(indicators.FileStocks), &stocks); err == nil {
		in.Stocks = &stocks
	}

	var report contracts.ReportDaily
	if err := store.ReadJSON(p.ProcessedFile(bundle.FileReport), &report); err == nil {
		in.Report = &report
	}

	return in
}
