// Command sirilflow runs Siril astrophotography workflows.
package main

import "sirilflow/internal/cli"

func main() {
	cli.Execute()
}
