package commands

import (
	"fmt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"roundbft/app/learning"
	"roundbft/rpc"
)

// ShowFSMCmd 输出学习应用的轮次转移表
var ShowFSMCmd = &cobra.Command{
	Use:     "show-fsm",
	Aliases: []string{"show_fsm"},
	Short:   "Show the round transition table of the application",
	RunE:    showFSM,
	PreRun:  deprecateSnakeCase,
}

func showFSM(cmd *cobra.Command, args []string) error {
	app, err := learning.NewLearningApp()
	if err != nil {
		return err
	}
	bz, err := json.MarshalIndent(rpc.DescribeApp(app), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal fsm")
	}
	fmt.Println(string(bz))
	return nil
}
