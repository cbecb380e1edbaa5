package bench

import "sync"

// Merge fans several channels into one. The returned channel is closed
// once every input channel is closed and drained.
func Merge[T any](cs ...<-chan T) <-chan T {
	var wg sync.WaitGroup

	out := make(chan T)

	// send copies values from c to out until c is closed, then calls wg.Done.
	send := func(c <-chan T) {
		for v := range c {
			out <- v
		}
		wg.Done()
	}

	wg.Add(len(cs))
	for _, c := range cs {
		go send(c)
	}

	// Close out once all the send goroutines are done. This must start
	// after the wg.Add call.
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
