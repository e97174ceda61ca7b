package main

import (
	"github.com/outofforest/broadcast/test/objects"
	"github.com/outofforest/proton"
)

//go:generate go run .
func main() {
	proton.Generate("../types.proton.go",
		proton.Message(objects.Greeting{}),
		proton.Message(objects.Counter{}),
	)
}
