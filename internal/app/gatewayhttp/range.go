package gatewayhttp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sir_venger/mediagate/internal/models"
)

// byteRange описывает запрошенный отрезок [From, Until] включительно.
type byteRange struct {
	From, Until int64
	// клиент прислал Range, ответ будет 206
	Partial bool
}

// parseRange разбирает "bytes=<from>-[until]" для файла размера size.
// Until прижимается к size-1 и только потом проверяется, что 0 <= from <= until < size.
// Без заголовка возвращается весь файл; для пустого файла это [0, -1].
func parseRange(header string, size int64) (byteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return byteRange{From: 0, Until: size - 1}, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return byteRange{}, fmt.Errorf("%w: %q", models.ErrMalformedRange, header)
	}
	fromRaw, untilRaw, ok := strings.Cut(spec, "-")
	if !ok {
		return byteRange{}, fmt.Errorf("%w: %q", models.ErrMalformedRange, header)
	}

	from, err := strconv.ParseInt(strings.TrimSpace(fromRaw), 10, 64)
	if err != nil {
		return byteRange{}, fmt.Errorf("%w: %q", models.ErrMalformedRange, header)
	}

	until := size - 1
	if untilRaw = strings.TrimSpace(untilRaw); untilRaw != "" {
		u, err := strconv.ParseInt(untilRaw, 10, 64)
		if err != nil {
			return byteRange{}, fmt.Errorf("%w: %q", models.ErrMalformedRange, header)
		}
		until = min(u, size-1)
	}

	if from < 0 || until < from || until >= size {
		return byteRange{}, fmt.Errorf("%w: %d-%d of %d", models.ErrRangeNotSatisfiable, from, until, size)
	}

	return byteRange{From: from, Until: until, Partial: true}, nil
}
