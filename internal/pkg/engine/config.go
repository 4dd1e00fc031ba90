package engine

type Config struct {
	// Workers > 1 enables concurrent transformation of the records in a batch, using at most
	// this many goroutines. Output order is unaffected.
	Workers int
}
