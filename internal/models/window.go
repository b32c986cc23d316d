package models

import "fmt"

// DefaultChunkSize задаёт размер одного удалённого чтения.
const DefaultChunkSize int64 = 1 << 20

// RangeWindow описывает арифметику одного byte-range запроса поверх чтений целыми чанками.
type RangeWindow struct {
	From         int64
	Until        int64
	ChunkSize    int64
	Offset       int64
	FirstPartCut int64
	LastPartCut  int64
	PartCount    int64
}

// NewRangeWindow проверяет границы [from, until] для файла size и рассчитывает окно.
// until должен быть уже обрезан до size-1.
func NewRangeWindow(from, until, size, chunkSize int64) (RangeWindow, error) {
	if chunkSize <= 0 {
		return RangeWindow{}, fmt.Errorf("chunk size must be > 0, got %d", chunkSize)
	}
	if from < 0 || until < from || until >= size {
		return RangeWindow{}, fmt.Errorf("%w: bytes=%d-%d of %d", ErrRangeNotSatisfiable, from, until, size)
	}

	offset := from - from%chunkSize

	return RangeWindow{
		From:         from,
		Until:        until,
		ChunkSize:    chunkSize,
		Offset:       offset,
		FirstPartCut: from - offset,
		LastPartCut:  until%chunkSize + 1,
		PartCount:    (until+chunkSize)/chunkSize - offset/chunkSize,
	}, nil
}

// Length возвращает число байт, которое получит клиент.
func (w RangeWindow) Length() int64 {
	return w.Until - w.From + 1
}

// ContentRange форматирует значение заголовка Content-Range.
func (w RangeWindow) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", w.From, w.Until, size)
}
