package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/data/duckdb"
	"github.com/redtramp/univocity-trader/pkg/data/mapper"
)

var ErrEndOfData = errors.New("end of data")

// CandleSource yields the candles of one symbol in open time order and
// ErrEndOfData once exhausted.
type CandleSource interface {
	Next(ctx context.Context) (common.Candle, error)
}

type SliceSource struct {
	candles []common.Candle
	idx     int
}

func NewSliceSource(candles []common.Candle) *SliceSource {
	return &SliceSource{candles: candles}
}

func (s *SliceSource) Next(_ context.Context) (common.Candle, error) {
	if s.idx >= len(s.candles) {
		return common.Candle{}, ErrEndOfData
	}
	c := s.candles[s.idx]
	s.idx++
	return c, nil
}

// LoadSource reads the candles of symbol in [from, to] into memory.
func LoadSource(ctx context.Context, reader *duckdb.Reader, symbol string, from, to time.Time) (*SliceSource, error) {
	var candles []common.Candle
	err := reader.LoadCandles(ctx, symbol, from, to, func(candle common.Candle) error {
		candles = append(candles, candle)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error loading candles of %s: %w", symbol, err)
	}
	return NewSliceSource(candles), nil
}

// BinarySource streams candles out of a memory mapped file of
// mapper.BinaryCandle records sorted by open time.
type BinarySource struct {
	symbol string
	reader *mapper.Reader[mapper.BinaryCandle]

	from int64
	to   int64
	idx  int64

	binaryCandle mapper.BinaryCandle
}

func NewBinarySource(symbol string, reader *mapper.Reader[mapper.BinaryCandle], from, to time.Time) *BinarySource {
	return &BinarySource{
		symbol: symbol,
		reader: reader,
		from:   from.UnixNano(),
		to:     to.UnixNano(),
	}
}

// LookupStartIndex positions the source on the first candle opening at or
// after from.
func (s *BinarySource) LookupStartIndex() error {
	entryCount, err := s.reader.EntryCount()
	if err != nil {
		return fmt.Errorf("error getting entry count: %w", err)
	}

	if entryCount == 0 {
		return fmt.Errorf("entry count is zero")
	}

	var entry mapper.BinaryCandle

	low := int64(0)
	high := entryCount - 1

	for low <= high {
		mid := (low + high) / 2

		if err := s.reader.Read(mid, &entry); err != nil {
			return fmt.Errorf("error reading entry at index %d: %w", mid, err)
		}

		if entry.OpenTime < s.from {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	s.idx = low
	return nil
}

func (s *BinarySource) Next(_ context.Context) (common.Candle, error) {
	var candle common.Candle

	if err := s.reader.Read(s.idx, &s.binaryCandle); err != nil {
		if errors.Is(err, mapper.ErrEof) {
			return candle, ErrEndOfData
		}
		return candle, err
	}

	if s.binaryCandle.OpenTime > s.to {
		return candle, ErrEndOfData
	}
	s.idx++

	s.binaryCandle.ToCandle(s.symbol, &candle)
	return candle, nil
}
