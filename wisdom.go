package butterfly

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cwbudde/butterfly/internal/bftypes"
	"github.com/cwbudde/butterfly/internal/cpu"
	"github.com/cwbudde/butterfly/internal/planner"
)

// Wisdom is a store of CPU partition decisions keyed by operation, size,
// precision and CPU features. The engines consult the default store when no
// strategy is forced.
type Wisdom = planner.Wisdom

// WisdomKey identifies one decision.
type WisdomKey = planner.WisdomKey

// WisdomEntry is one recorded decision.
type WisdomEntry = planner.WisdomEntry

// NewWisdom creates a new empty wisdom store.
func NewWisdom() *Wisdom {
	return planner.NewWisdom()
}

// WisdomKeyFor returns the key under which a decision for op at size n with
// element type T is stored on this machine.
func WisdomKeyFor[T Float](op Op, n int) WisdomKey {
	return WisdomKey{
		Op:          op,
		Size:        n,
		Precision:   bftypes.PrecisionOf[T](),
		CPUFeatures: cpu.DetectFeatures().Mask(),
	}
}

// RecordStrategy stores s as the preferred strategy for op at size n with
// element type T in the default store.
func RecordStrategy[T Float](op Op, n int, s Strategy) {
	planner.DefaultWisdom.Store(WisdomEntry{
		Key:       WisdomKeyFor[T](op, n),
		Strategy:  s,
		Timestamp: time.Now(),
	})
}

// ImportWisdom loads wisdom data from a file into the default store.
// The file should be in the format produced by ExportWisdom.
func ImportWisdom(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open wisdom file: %w", err)
	}

	defer f.Close()

	if err := planner.DefaultWisdom.Import(f); err != nil {
		return fmt.Errorf("failed to import wisdom: %w", err)
	}

	return nil
}

// ExportWisdom saves the default store to a file.
func ExportWisdom(filename string) error {
	return ExportWisdomTo(filename, planner.DefaultWisdom)
}

// ExportWisdomTo saves a specific wisdom store to a file.
func ExportWisdomTo(filename string, wisdom *Wisdom) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create wisdom file: %w", err)
	}

	if err := wisdom.Export(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to export wisdom: %w", err)
	}

	return file.Close()
}

// ImportWisdomFromString loads wisdom data from a string into the default
// store. This is useful for embedding wisdom in compiled binaries.
func ImportWisdomFromString(data string) error {
	err := planner.DefaultWisdom.Import(strings.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to import wisdom from string: %w", err)
	}

	return nil
}

// ClearWisdom removes all entries from the default store.
func ClearWisdom() {
	planner.DefaultWisdom.Clear()
}

// WisdomLen returns the number of entries in the default store.
func WisdomLen() int {
	return planner.DefaultWisdom.Len()
}
