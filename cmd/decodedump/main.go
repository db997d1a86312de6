//go:build memviz

// Command decodedump writes the ARM/THUMB decode-table classification to a
// Graphviz .dot file, invoked via internal/cpu's go:generate directive when
// the table layout changes and the diagram needs regenerating.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/dskellund/gbacore/internal/cpu"
)

func main() {
	out := flag.String("out", "decodetables.dot", "output .dot path")
	flag.Parse()

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	cpu.DumpDecodeTables(f)
}
