package main

import (
	"github.com/daedaleanai/qlflow/cmd"
)

func main() {
	cmd.Execute()
}
