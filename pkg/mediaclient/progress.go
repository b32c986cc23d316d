package mediaclient

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	progressBarWidth     = 32
	progressRenderPeriod = 120 * time.Millisecond
)

// progressBar рисует ASCII-индикатор передачи в out. Реализует io.Writer для TeeReader.
type progressBar struct {
	mu         sync.Mutex
	out        io.Writer
	prefix     string
	total      int64
	current    int64
	lastRender time.Time
	lastWidth  int
	finished   bool
}

func newProgressBar(out io.Writer, prefix string, total int64) *progressBar {
	return &progressBar{out: out, prefix: prefix, total: total}
}

func (p *progressBar) Write(b []byte) (int, error) {
	p.mu.Lock()
	if !p.finished {
		p.current += int64(len(b))
	}
	p.mu.Unlock()

	p.render(false, "")
	return len(b), nil
}

func (p *progressBar) render(force bool, suffix string) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.finished && !force || !force && now.Sub(p.lastRender) < progressRenderPeriod {
		return
	}
	p.lastRender = now
	p.printLocked(suffix, "")
}

func (p *progressBar) printLocked(suffix, end string) {
	line := p.line() + suffix
	pad := ""
	if p.lastWidth > len(line) {
		pad = strings.Repeat(" ", p.lastWidth-len(line))
	}
	p.lastWidth = len(line)
	fmt.Fprintf(p.out, "\r%s%s%s", line, pad, end)
}

func (p *progressBar) line() string {
	if p.total <= 0 {
		return fmt.Sprintf("%s %s transferred", p.prefix, humanBytes(p.current))
	}

	ratio := min(float64(p.current)/float64(p.total), 1)
	filled := min(int(ratio*progressBarWidth+0.5), progressBarWidth)

	return fmt.Sprintf("%s [%s%s] %3d%% %s/%s",
		p.prefix,
		strings.Repeat("=", filled),
		strings.Repeat(" ", progressBarWidth-filled),
		int(ratio*100+0.5),
		humanBytes(p.current),
		humanBytes(p.total),
	)
}

func (p *progressBar) Finish() {
	p.complete(" ok")
}

func (p *progressBar) Fail(err error) {
	p.complete(fmt.Sprintf(" failed: %v", err))
}

func (p *progressBar) complete(suffix string) {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true
	p.printLocked(suffix, "\n")
}

func humanBytes(v int64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}

	value := float64(v)
	units := []string{"KB", "MB", "GB", "TB", "PB"}
	i := -1
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.1f %s", value, units[i])
}
