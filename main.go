package main

import (
	"github.com/MatiasNAmendola/Nxdb/cmd"
)

func main() {
	cmd.Execute()
}
