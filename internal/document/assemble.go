package document

import (
	"bytes"
	"fmt"
)

// AssemblyFault is the panic value raised when an index outside the source
// document reaches Assemble. It signals a selector bug, not bad input.
type AssemblyFault struct {
	Index     int
	PageCount int
}

func (f *AssemblyFault) Error() string {
	if f.Index < 0 {
		return fmt.Sprintf("assembly fault: empty page sequence (document has %d pages)", f.PageCount)
	}
	return fmt.Sprintf("assembly fault: page index %d outside document of %d pages", f.Index, f.PageCount)
}

// Assemble builds a new document from the 0-based indices, in order.
// Indices are trusted to come from the selector; an out-of-range or empty
// sequence panics with *AssemblyFault.
func Assemble(src Source, indices []int) ([]byte, error) {
	n := src.PageCount()
	if len(indices) == 0 {
		panic(&AssemblyFault{Index: -1, PageCount: n})
	}
	pages := make([]int, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= n {
			panic(&AssemblyFault{Index: idx, PageCount: n})
		}
		pages[i] = idx + 1
	}

	var buf bytes.Buffer
	if err := src.Collect(&buf, pages); err != nil {
		return nil, fmt.Errorf("collect %d pages: %w", len(pages), err)
	}
	return buf.Bytes(), nil
}
