package node

// runner is a server loop for one Mode.
type runner interface {
	// Run serves until Stop is called.
	Run() error
	Stop() error
	Addr() string
}
