package observ

import (
	"fmt"
	"strings"
	"time"
)

// Stage records one step of lowering a unit: load, layout, lower, emit.
type Stage struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Items int // types or calls handled by the stage
	Note  string
}

// Timer tracks the stages of one unit. Not safe for concurrent use; each
// worker owns its own and the driver combines reports with Aggregate.
type Timer struct {
	stages []Stage
}

func NewTimer() *Timer { return &Timer{stages: make([]Stage, 0, 4)} }

// Begin starts a stage and returns its index.
func (t *Timer) Begin(name string) int {
	t.stages = append(t.stages, Stage{Name: name, Start: time.Now()})
	return len(t.stages) - 1
}

// End finishes the stage at idx. Out-of-range indices are ignored.
func (t *Timer) End(idx int, items int, note string) {
	if idx < 0 || idx >= len(t.stages) {
		return
	}
	s := &t.stages[idx]
	s.Dur = time.Since(s.Start)
	s.Items = items
	s.Note = note
}

// Measure runs fn as a stage; the stage note carries fn's error, if any.
func (t *Timer) Measure(name string, fn func() (int, error)) error {
	idx := t.Begin(name)
	items, err := fn()
	note := ""
	if err != nil {
		note = err.Error()
	}
	t.End(idx, items, note)
	return err
}

// StageReport is the serialized form of a stage.
type StageReport struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
	Items      int     `json:"items,omitempty"`
	Note       string  `json:"note,omitempty"`
}

// Report описывает агрегированные данные таймера.
type Report struct {
	TotalMS float64       `json:"total_ms"`
	Stages  []StageReport `json:"stages"`
}

// Report формирует срез стадий и общую длительность в миллисекундах.
func (t *Timer) Report() Report {
	if len(t.stages) == 0 {
		return Report{}
	}
	r := Report{Stages: make([]StageReport, len(t.stages))}
	var total time.Duration
	for i, s := range t.stages {
		total += s.Dur
		r.Stages[i] = StageReport{
			Name:       s.Name,
			DurationMS: durationToMillis(s.Dur),
			Items:      s.Items,
			Note:       s.Note,
		}
	}
	r.TotalMS = durationToMillis(total)
	return r
}

// Aggregate sums reports stage by stage, keeping first-seen stage order.
// Notes are dropped; they belong to a single unit.
func Aggregate(reports ...Report) Report {
	var out Report
	index := make(map[string]int)
	for _, r := range reports {
		out.TotalMS += r.TotalMS
		for _, s := range r.Stages {
			i, ok := index[s.Name]
			if !ok {
				i = len(out.Stages)
				index[s.Name] = i
				out.Stages = append(out.Stages, StageReport{Name: s.Name})
			}
			out.Stages[i].DurationMS += s.DurationMS
			out.Stages[i].Items += s.Items
		}
	}
	return out
}

// Summary renders a report as an aligned table.
func (r Report) Summary() string {
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, s := range r.Stages {
		fmt.Fprintf(&sb, "  %-12s %9.2f ms", s.Name, s.DurationMS)
		if s.Items > 0 {
			fmt.Fprintf(&sb, "  %5d items", s.Items)
		}
		if s.Note != "" {
			sb.WriteString("  // " + s.Note)
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "  %-12s %9.2f ms\n", "total", r.TotalMS)
	return sb.String()
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
