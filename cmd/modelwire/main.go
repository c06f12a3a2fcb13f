// Package main is the modelwire command: it serves the routes synthesized
// from a directory of model definitions and API modules.
package main

func main() {
	Execute()
}
