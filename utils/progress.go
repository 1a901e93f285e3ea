package utils

import "sync/atomic"

// Progress counts work as it moves through a pipeline stage.
type Progress struct {
	Name    string
	Total   atomic.Uint64
	Current atomic.Uint64
}

func NewProgress(name string) *Progress {
	return &Progress{Name: name}
}

// Add records delta new units of work.
func (p *Progress) Add(delta uint64) {
	p.Total.Add(delta)
}

// Increment records delta finished units of work.
func (p *Progress) Increment(delta uint64) {
	p.Current.Add(delta)
}

func (p *Progress) Pending() uint64 {
	total, current := p.Total.Load(), p.Current.Load()
	if current > total {
		return 0
	}
	return total - current
}

func (p *Progress) Percent() float64 {
	total := p.Total.Load()
	if total == 0 {
		return 1
	}
	return float64(p.Current.Load()) / float64(total)
}
