// Package parallel splits index ranges across goroutines and pools the
// scratch buffers the engines hand to their workers.
package parallel

import "sync"

// For splits [0, n) into at most workers contiguous chunks and runs fn on
// each in its own goroutine. worker is the chunk's ordinal, stable for a
// given (n, workers), so callers can index per-worker state with it.
// For returns once every chunk has finished. With workers <= 1 or n <= 1
// fn runs on the calling goroutine.
func For(n, workers int, fn func(worker, lo, hi int)) {
	if n <= 0 {
		return
	}

	if workers <= 1 || n == 1 {
		fn(0, 0, n)
		return
	}

	workers = min(workers, n)
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup

	for w, lo := 0, 0; lo < n; w, lo = w+1, lo+chunk {
		hi := min(lo+chunk, n)

		wg.Add(1)

		go func(w, lo, hi int) {
			defer wg.Done()

			fn(w, lo, hi)
		}(w, lo, hi)
	}

	wg.Wait()
}

// Chunks returns how many chunks For creates for (n, workers).
func Chunks(n, workers int) int {
	if n <= 0 {
		return 0
	}

	if workers <= 1 || n == 1 {
		return 1
	}

	workers = min(workers, n)
	chunk := (n + workers - 1) / workers

	return (n + chunk - 1) / chunk
}
