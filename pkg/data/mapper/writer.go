package mapper

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/redtramp/univocity-trader/pkg/common"
	"github.com/redtramp/univocity-trader/pkg/utility/fixed"
)

// Writer appends candles in the layout Reader maps. Records use the native
// byte order because Reader casts the mapped bytes in place.
type Writer struct {
	w     *bufio.Writer
	count int64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Write(candle common.Candle) error {
	b, err := FromCandle(candle)
	if err != nil {
		return err
	}
	if err := binary.Write(w.w, binary.NativeEndian, b); err != nil {
		return fmt.Errorf("unable to write candle: %w", err)
	}
	w.count++
	return nil
}

func (w *Writer) Flush() error { return w.w.Flush() }
func (w *Writer) Count() int64 { return w.count }

// FromCandle converts candle to its on-disk layout, rounding prices and
// volume to eight fractional digits.
func FromCandle(candle common.Candle) (BinaryCandle, error) {
	b := BinaryCandle{
		OpenTime:  candle.OpenTime.UnixNano(),
		CloseTime: candle.CloseTime.UnixNano(),
	}

	fields := []struct {
		name string
		src  fixed.Point
		dst  *int64
	}{
		{"open", candle.Open, &b.Open},
		{"high", candle.High, &b.High},
		{"low", candle.Low, &b.Low},
		{"close", candle.Close, &b.Close},
		{"volume", candle.Volume, &b.Volume},
	}
	for _, f := range fields {
		v, ok := f.src.Scaled(fixed.Scale)
		if !ok {
			return b, fmt.Errorf("%s %s of %s at %s does not fit the binary layout", f.name, f.src, candle.Symbol, candle.OpenTime)
		}
		*f.dst = v
	}
	return b, nil
}
