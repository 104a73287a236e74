// Command fanout runs the work distribution engine: it keeps a target number
// of partitions, claims work items in batches and applies the effect to every
// item through one sequential worker per partition.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
