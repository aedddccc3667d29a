package main

import (
	"fmt"
	"github.com/spf13/cobra"
	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"
	"os"
	"time"
)

var (
	interval time.Duration
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "round_watch [agent rpc host:port]...",
	Short: "Watch the rounds of running roundbft agents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.NewTMLogger(log.NewSyncWriter(os.Stdout))
		if !verbose {
			logger = log.NewFilter(logger, log.AllowInfo())
		}

		w := newWatcher(args, interval)
		w.SetLogger(logger)
		if err := w.Start(); err != nil {
			return err
		}

		tmos.TrapSignal(logger, w.Stop)
		select {}
	},
}

func main() {
	rootCmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "轮询round_state的间隔")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "输出debug日志")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
