// Package main is the ammlab entrypoint; all behaviour lives behind the
// cobra command tree in internal/cli.
package main

import (
	"xrpl-amm-lab/internal/cli"
)

func main() {
	cli.Execute()
}
