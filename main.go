// main is the entry point for the retest CLI.
package main

import (
	"github.com/huangsam/retest/cmd"
	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/internal/iocache"
)

func main() {
	defer iocache.CloseCaching()
	cmd.SetCacheManager(iocache.Manager)

	if err := cmd.Execute(); err != nil {
		_ = cmd.StopProfiling()
		contract.LogFatal("Command failed", err)
	}
	if err := cmd.StopProfiling(); err != nil {
		contract.LogWarn("Failed to stop profiling", err)
	}
}
