// Sweeper - Cloud Estate Decommissioning Engine
// Scan. Classify. Sweep.
package main

func main() {
	Execute()
}
