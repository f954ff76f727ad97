// Command docgraph inspects and edits persistent document graphs.
package main

import "github.com/mesh-intelligence/docgraph/internal/cli"

func main() {
	cli.Execute()
}
