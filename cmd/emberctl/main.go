// Command emberctl exercises the kernel/mm allocator from user space: it
// registers a plain Go byte slice as a region (standing in for physical
// memory a real kernel would donate at boot) and drives
// allocate/deallocate traffic against them so the allocator's behaviour
// can be inspected outside of a kernel build.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
