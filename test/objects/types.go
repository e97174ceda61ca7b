package objects

// Greeting is the text object used in tests.
type Greeting struct {
	Text string
}

// Counter is the numeric object used in tests.
type Counter struct {
	Value uint64
}
