// Package diag implements the error-handling design of spec.md §7: fatal
// input/range/resource errors abort immediately, resolution errors and
// policy warnings accumulate in a lock-free-friendly buffer and are
// reported together, in deterministic order, at the end of the run.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/emberlink/eld/pkg/utils"
)

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// Diagnostic is one accumulated resolution error or policy warning,
// ordered by (File, Section, Offset) so repeated runs print identically
// regardless of which goroutine raced to append first.
type Diagnostic struct {
	Severity Severity
	File     string
	Section  string
	Offset   uint64
	Message  string
}

type Bag struct {
	mu          sync.Mutex
	items       []Diagnostic
	fatalCount  int64
	fatalWarn   bool // --fatal-warnings
	log         *slog.Logger
}

func NewBag(logger *slog.Logger) *Bag {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bag{log: logger}
}

func (b *Bag) SetFatalWarnings(v bool) { b.fatalWarn = v }

// Fatal reports an unrecoverable error (spec.md §7 kinds 1, 3, 5) and
// terminates the process after flushing accumulated diagnostics.
func (b *Bag) Fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	b.log.Error("fatal", "msg", msg)
	b.Flush()
	debug.PrintStack()
	os.Exit(1)
}

// Add records an accumulated diagnostic (spec.md §7 kinds 2 and 4). It
// is safe to call concurrently from parallel stage workers.
func (b *Bag) Add(d Diagnostic) {
	b.mu.Lock()
	b.items = append(b.items, d)
	b.mu.Unlock()
	if d.Severity == SeverityError {
		atomic.AddInt64(&b.fatalCount, 1)
	}
}

func (b *Bag) Warn(file, section string, offset uint64, format string, args ...any) {
	sev := SeverityWarning
	if b.fatalWarn {
		sev = SeverityError
	}
	b.Add(Diagnostic{Severity: sev, File: file, Section: section, Offset: offset,
		Message: fmt.Sprintf(format, args...)})
}

func (b *Bag) Error(file, section string, offset uint64, format string, args ...any) {
	b.Add(Diagnostic{Severity: SeverityError, File: file, Section: section, Offset: offset,
		Message: fmt.Sprintf(format, args...)})
}

// HasFatal reports whether any accumulated diagnostic is an error, i.e.
// whether the stage barrier following this stage must abort the pipeline.
func (b *Bag) HasFatal() bool {
	return atomic.LoadInt64(&b.fatalCount) > 0
}

// CheckBarrier aborts the process if any fatal diagnostic has been
// accumulated so far. Called at each pipeline stage boundary.
func (b *Bag) CheckBarrier(stage string) {
	if b.HasFatal() {
		b.Flush()
		b.log.Error("aborting after stage", "stage", stage)
		os.Exit(1)
	}
}

// Flush prints all accumulated diagnostics in deterministic order and
// clears the bag.
func (b *Bag) Flush() {
	b.mu.Lock()
	items := make([]Diagnostic, len(b.items))
	copy(items, b.items)
	b.items = b.items[:0]
	b.mu.Unlock()

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].File != items[j].File {
			return items[i].File < items[j].File
		}
		if items[i].Section != items[j].Section {
			return items[i].Section < items[j].Section
		}
		return items[i].Offset < items[j].Offset
	})

	for _, d := range items {
		level := slog.LevelWarn
		if d.Severity == SeverityError {
			level = slog.LevelError
		}
		b.log.Log(context.Background(), level, d.Message, "file", d.File, "section", d.Section, "offset", d.Offset)
	}
}

// Install wires this bag's Fatal into utils.Fatal, so low-level helper
// code that has no Context/Bag handle still terminates through the same
// accumulate-and-flush path instead of calling os.Exit directly.
func (b *Bag) Install() {
	utils.SetFatalHook(func(v any) {
		b.Fatal("%v", v)
	})
}
