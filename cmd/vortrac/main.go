// Command vortrac is a command-line interface to the VORTRAC
// tropical-cyclone radar analysis pipeline.
package main

import "github.com/wujk1122/vortrac/internal/vortracutil"

func main() {
	vortracutil.Execute()
}
