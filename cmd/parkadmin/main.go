package main

import (
	"github.com/uparkt/parkadmin/internal/cli"
)

func main() {
	cli.Execute()
}
