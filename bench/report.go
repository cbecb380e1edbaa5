package bench

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/elliotchance/orderedmap"

	"github.com/zhuanxuhit/singleton-notes/singleton"
)

// bufPool holds the buffers reports are rendered into.
var bufPool sync.Pool

func init() {
	bufPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}
}

func getBuffer() *bytes.Buffer {
	return bufPool.Get().(*bytes.Buffer)
}

func putBuffer(b *bytes.Buffer) {
	b.Reset()
	bufPool.Put(b)
}

// Report keeps results in the order their strategies were first added.
// Adding a strategy again replaces its result in place.
type Report struct {
	results *orderedmap.OrderedMap // singleton.Strategy -> Result
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{results: orderedmap.NewOrderedMap()}
}

// Add records res under its strategy.
func (r *Report) Add(res Result) {
	r.results.Set(res.Strategy, res)
}

// Get returns the result recorded for s.
func (r *Report) Get(s singleton.Strategy) (Result, bool) {
	v, ok := r.results.Get(s)
	if !ok {
		return Result{}, false
	}
	return v.(Result), true
}

// Len returns the number of strategies in the report.
func (r *Report) Len() int {
	return r.results.Len()
}

// Results returns the results in insertion order.
func (r *Report) Results() []Result {
	keys := r.results.Keys()
	out := make([]Result, 0, len(keys))
	for _, k := range keys {
		v, _ := r.results.Get(k)
		out = append(out, v.(Result))
	}
	return out
}

// OK reports whether every run saw exactly one instance.
func (r *Report) OK() bool {
	for _, res := range r.Results() {
		if !res.OK() {
			return false
		}
	}
	return true
}

// Speedup returns how many times faster s ran than base, in elapsed time.
func (r *Report) Speedup(base, s singleton.Strategy) (float64, bool) {
	b, ok := r.Get(base)
	if !ok {
		return 0, false
	}
	res, ok := r.Get(s)
	if !ok || res.Elapsed <= 0 {
		return 0, false
	}
	return b.Elapsed.Seconds() / res.Elapsed.Seconds(), true
}

// Render writes one block per strategy. Every block after the first also
// states its speedup relative to the first.
func (r *Report) Render(w io.Writer) error {
	buf := getBuffer()
	defer putBuffer(buf)

	results := r.Results()
	for i, res := range results {
		fmt.Fprintf(buf, "%s\n", res.Strategy.Title())
		fmt.Fprintf(buf, "Singleton object requested %d times. Unique reference count: %d\n",
			res.Calls, res.UniqueReferences)
		fmt.Fprintf(buf, "Elapsed time = %f [s]\n", res.Elapsed.Seconds())
		if i > 0 {
			if x, ok := r.Speedup(results[0].Strategy, res.Strategy); ok {
				fmt.Fprintf(buf, "Speedup : %.2fx (wrt. %s)\n", x, results[0].Strategy.Title())
			}
		}
		buf.WriteByte('\n')
	}

	_, err := buf.WriteTo(w)
	return err
}
