package main

import (
	"github.com/eleven-am/glance/internal/bootstrap"
)

func main() {
	// Platform screen and microphone integrations plug in here; the
	// service runs the control API and event feeds without them.
	bootstrap.Run(bootstrap.Options{})
}
