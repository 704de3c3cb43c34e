package main

import (
	"os"

	"github.com/huangsam/codepulse/cmd"
	"github.com/huangsam/codepulse/internal/contract"
	"github.com/huangsam/codepulse/internal/iocache"
)

func main() {
	err := cmd.Execute()
	iocache.CloseStores()
	if err != nil {
		contract.Logger.Error(err)
		os.Exit(1)
	}
}
