package main

import (
	"fmt"
	"io"
	"math/rand"
	"text/tabwriter"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/emberkernel/ember/kernel/mm"
)

func newDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Register a region, run a burst of allocate/deallocate traffic, and print the resulting stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			pages, err := mustPositivePages(flags, "pages")
			if err != nil {
				return err
			}
			requests, err := flags.GetInt("requests")
			if err != nil {
				return errors.Wrap(err, "reading --requests")
			}
			seed, err := flags.GetInt64("seed")
			if err != nil {
				return errors.Wrap(err, "reading --seed")
			}
			return runDemo(cmd.OutOrStdout(), pages, requests, seed)
		},
	}
	cmd.Flags().Int("pages", 256, "number of pages to donate to the allocator")
	cmd.Flags().Int("requests", 500, "number of allocate/deallocate calls to issue")
	cmd.Flags().Int64("seed", 1, "PRNG seed for the simulated traffic")
	return cmd
}

var demoSizes = []uintptr{16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192, 16384}

func runDemo(out io.Writer, pages, requests int, seed int64) error {
	buf := make([]byte, (pages+1)*mm.PageSize)
	base := uintptr(unsafe.Pointer(&buf[0]))
	base = (base + mm.PageSize - 1) &^ (mm.PageSize - 1)

	var k mm.Kernel
	if err := k.RegisterRegion(base, uintptr(pages)*mm.PageSize); err != nil {
		return errors.Wrap(err, "registering region")
	}

	rng := rand.New(rand.NewSource(seed))
	var live []unsafe.Pointer
	var allocated, failed int

	for i := 0; i < requests; i++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			size := demoSizes[rng.Intn(len(demoSizes))]
			p := k.Allocate(size)
			if p == nil {
				failed++
				continue
			}
			allocated++
			live = append(live, p)
		} else {
			idx := rng.Intn(len(live))
			k.Deallocate(live[idx])
			live = append(live[:idx], live[idx+1:]...)
		}
	}
	for _, p := range live {
		k.Deallocate(p)
	}

	return printStats(out, k.Stats(), allocated, failed)
}

func printStats(out io.Writer, st mm.Stats, allocated, failed int) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "regions:\t%d\n", st.RegionCount)
	fmt.Fprintf(tw, "total pages:\t%s\n", humanize.Comma(int64(st.TotalPages)))
	fmt.Fprintf(tw, "allocations served:\t%d\n", allocated)
	fmt.Fprintf(tw, "allocations failed:\t%d\n", failed)
	fmt.Fprintln(tw, "order\tfree blocks\tfree bytes")
	for order, n := range st.FreeBlocksByOrder {
		if n == 0 {
			continue
		}
		bytes := int64(n) * int64(1<<uint(order)) * mm.PageSize
		fmt.Fprintf(tw, "%d\t%d\t%s\n", order, n, humanize.Bytes(uint64(bytes)))
	}
	fmt.Fprintln(tw, "chunk size\tblock order\tcapacity\tpartial blocks")
	for _, c := range st.SlabClasses {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", humanize.Bytes(uint64(c.ChunkSize)), c.BlockOrder, c.Capacity, c.PartialBlocks)
	}
	return tw.Flush()
}
