package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/encodeous/wisun/core"
	"github.com/encodeous/wisun/mock"
	"github.com/encodeous/wisun/state"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <mesh.yaml>",
	Short: "Runs every node of a mesh in process over a simulated radio medium",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := state.LoadMeshConfig(args[0])
		if err != nil {
			return err
		}
		duration, _ := cmd.Flags().GetDuration("duration")
		interval, _ := cmd.Flags().GetDuration("inspect")
		seed, _ := cmd.Flags().GetUint64("seed")
		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}

		var closers []func() error
		defer func() {
			for _, c := range closers {
				_ = c()
			}
		}()
		mesh, err := mock.StartMesh(*cfg, seed, func(n *state.NodeCfg) *slog.Logger {
			log, closer, err := core.NewLogger(n, level, cmd.ErrOrStderr())
			if err != nil {
				slog.Error("failed to open node log", "node", n.Id, "error", err)
				return slog.New(slog.DiscardHandler)
			}
			closers = append(closers, closer)
			return log
		})
		if err != nil {
			return err
		}
		defer mesh.Stop()

		if addr, _ := cmd.Flags().GetString("metrics"); addr != "" {
			srv := &http.Server{Addr: addr}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					slog.Error("metrics server failed", "error", err)
				}
			}()
			defer srv.Close()
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if duration > 0 {
			var tc context.CancelFunc
			ctx, tc = context.WithTimeout(ctx, duration)
			defer tc()
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				printMesh(cmd, mesh)
				return nil
			case <-ticker.C:
				printMesh(cmd, mesh)
			}
		}
	},
	GroupID: "mesh",
}

func printMesh(cmd *cobra.Command, mesh *mock.Mesh) {
	out := cmd.OutOrStdout()
	for _, n := range mesh.Cfg.Nodes {
		res, err := mesh.Inspect(n.Id)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", n.Id, err)
			continue
		}
		fmt.Fprintf(out, "== %s\n%s\n", n.Id, res)
	}
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().DurationP("duration", "d", 0, "Stop after this long, 0 runs until interrupted")
	simulateCmd.Flags().DurationP("inspect", "i", time.Second*10, "Interval between state dumps")
	simulateCmd.Flags().Uint64("seed", 1, "Seed of the frame loss generator")
	simulateCmd.Flags().String("metrics", "", "Serve /debug/metrics and /debug/vars on this address")
}
