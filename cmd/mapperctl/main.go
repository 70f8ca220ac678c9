// Command mapperctl inspects class mappings: it lists the registered
// classes and prints the SQL compiled for a class query.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
