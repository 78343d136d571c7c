package cmd

import (
	"encoding/json"
	"os"

	"github.com/generationsoftware/autotasks/src/draw_auction"
	"github.com/generationsoftware/autotasks/src/utils/logger"

	"github.com/spf13/cobra"
)

func init() {
	drawAuctionCmd.AddCommand(drawAuctionRunCmd)
	drawAuctionCmd.AddCommand(drawAuctionServeCmd)
	RootCmd.AddCommand(drawAuctionCmd)
}

var drawAuctionCmd = &cobra.Command{
	Use:   "draw_auction",
	Short: "Start RNG requests and relay RNG results when it pays off",
}

var drawAuctionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single pass over the RNG chain and all relay chains",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		controller := draw_auction.NewController(conf)

		report, err := controller.RunPass(ctx)
		if err != nil {
			return
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	},
}

var drawAuctionServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run passes on schedule and serve monitoring endpoints",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		controller := draw_auction.NewController(conf).
			WithSchedule()

		err = controller.Start()
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
		case <-controller.CtxRunning.Done():
		}

		controller.StopWait()
		return
	},
	PostRunE: func(cmd *cobra.Command, args []string) (err error) {
		log := logger.NewSublogger("root-cmd")
		log.Debug("Finished draw auction serve command")
		return
	},
}
