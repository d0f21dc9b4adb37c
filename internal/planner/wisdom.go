// Package planner records which CPU partition strategy performed best for a
// given operation, size, precision and CPU, so later calls can skip the
// heuristic.
package planner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/butterfly/internal/bftypes"
)

// ErrInvalidWisdom is returned by Import for malformed lines.
var ErrInvalidWisdom = errors.New("planner: invalid wisdom format")

// WisdomKey identifies one strategy decision.
type WisdomKey struct {
	Op          bftypes.Op
	Size        int
	Precision   bftypes.Precision
	CPUFeatures uint64
}

// WisdomEntry is a recorded decision.
type WisdomEntry struct {
	Key       WisdomKey
	Strategy  bftypes.Strategy
	Timestamp time.Time
}

// Wisdom is a concurrency-safe store of strategy decisions.
type Wisdom struct {
	mu      sync.RWMutex
	entries map[WisdomKey]WisdomEntry
}

// DefaultWisdom is the process-wide store consulted by the CPU engines.
var DefaultWisdom = NewWisdom()

// NewWisdom returns an empty store.
func NewWisdom() *Wisdom {
	return &Wisdom{entries: make(map[WisdomKey]WisdomEntry)}
}

// Store records e, replacing any entry with the same key.
func (w *Wisdom) Store(e WisdomEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries[e.Key] = e
}

// Lookup returns the entry for key.
func (w *Wisdom) Lookup(key WisdomKey) (WisdomEntry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	e, ok := w.entries[key]

	return e, ok
}

// LookupStrategy is a shorthand for Lookup returning just the strategy.
func (w *Wisdom) LookupStrategy(op bftypes.Op, size int, precision bftypes.Precision, features uint64) (bftypes.Strategy, bool) {
	e, ok := w.Lookup(WisdomKey{Op: op, Size: size, Precision: precision, CPUFeatures: features})
	if !ok {
		return bftypes.StrategyAuto, false
	}

	return e.Strategy, true
}

// Clear removes all entries.
func (w *Wisdom) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	clear(w.entries)
}

// Len returns the number of entries.
func (w *Wisdom) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.entries)
}

// Export writes one line per entry, sorted by op then size:
//
//	op:size:precision:features:strategy:timestamp
func (w *Wisdom) Export(out io.Writer) error {
	w.mu.RLock()

	entries := make([]WisdomEntry, 0, len(w.entries))
	for _, e := range w.entries {
		entries = append(entries, e)
	}

	w.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Key, entries[j].Key
		if a.Op != b.Op {
			return a.Op < b.Op
		}

		if a.Size != b.Size {
			return a.Size < b.Size
		}

		if a.Precision != b.Precision {
			return a.Precision < b.Precision
		}

		return a.CPUFeatures < b.CPUFeatures
	})

	bw := bufio.NewWriter(out)
	for _, e := range entries {
		_, err := fmt.Fprintf(bw, "%s:%d:%d:%d:%s:%d\n",
			e.Key.Op, e.Key.Size, e.Key.Precision, e.Key.CPUFeatures, e.Strategy, e.Timestamp.Unix())
		if err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Import merges entries read from r. Blank lines and lines starting with '#'
// are ignored. On a malformed line nothing is stored.
func (w *Wisdom) Import(r io.Reader) error {
	var parsed []WisdomEntry

	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		e, err := parseLine(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}

		parsed = append(parsed, e)
	}

	if err := sc.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range parsed {
		w.entries[e.Key] = e
	}

	return nil
}

func parseLine(line string) (WisdomEntry, error) {
	fields := strings.Split(line, ":")
	if len(fields) != 6 {
		return WisdomEntry{}, fmt.Errorf("%w: want 6 fields, got %d", ErrInvalidWisdom, len(fields))
	}

	op, ok := bftypes.ParseOp(fields[0])
	if !ok {
		return WisdomEntry{}, fmt.Errorf("%w: unknown op %q", ErrInvalidWisdom, fields[0])
	}

	size, err := strconv.Atoi(fields[1])
	if err != nil || size < 2 {
		return WisdomEntry{}, fmt.Errorf("%w: size %q", ErrInvalidWisdom, fields[1])
	}

	precision, err := strconv.ParseUint(fields[2], 10, 8)
	if err != nil || precision > uint64(bftypes.PrecisionFloat64) {
		return WisdomEntry{}, fmt.Errorf("%w: precision %q", ErrInvalidWisdom, fields[2])
	}

	features, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return WisdomEntry{}, fmt.Errorf("%w: features %q", ErrInvalidWisdom, fields[3])
	}

	strategy, ok := bftypes.ParseStrategy(fields[4])
	if !ok {
		return WisdomEntry{}, fmt.Errorf("%w: unknown strategy %q", ErrInvalidWisdom, fields[4])
	}

	ts, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return WisdomEntry{}, fmt.Errorf("%w: timestamp %q", ErrInvalidWisdom, fields[5])
	}

	return WisdomEntry{
		Key: WisdomKey{
			Op:          op,
			Size:        size,
			Precision:   bftypes.Precision(precision),
			CPUFeatures: features,
		},
		Strategy:  strategy,
		Timestamp: time.Unix(ts, 0),
	}, nil
}
