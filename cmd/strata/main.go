package main

import (
	"fmt"
	"os"
)

func main() {
	Execute()
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s %s: %v\n", failure("error:"), msg, err)
	os.Exit(1)
}
