package main

import (
	"os"

	"github.com/traineemgr/server/cmd"
)

var version = "dev"

func main() {
	os.Exit(cmd.Execute(version))
}
