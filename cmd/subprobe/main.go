package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/WangYihang/subprobe/internal/common"
	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/interface/cli"
	"github.com/WangYihang/subprobe/pkg/interface/presenter"
)

func main() {
	// Parse command line flags
	config, err := cli.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if config.Version {
		fmt.Println(common.PV.String())
		return
	}

	// Create assembler
	assembler := cli.NewAssembler(config)

	// Assemble use case with all dependencies
	useCase, err := assembler.AssembleUseCase()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Interrupts stop admission; completed probes are still reported
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if collector := assembler.Collector(); collector != nil {
		go func() {
			if err := collector.Serve(ctx, config.MetricsAddr); err != nil {
				fmt.Fprintf(os.Stderr, "Metrics server error: %v\n", err)
			}
		}()
	}

	var (
		stats   *entity.RunStatistics
		execErr error
	)

	if config.ShowDashboard {
		dashboard := presenter.NewDashboard(cancel)
		useCase.RegisterReporter(dashboard)
		useCase.RegisterHooks(dashboard)

		// Run use case in background
		done := make(chan struct{})
		go func() {
			defer close(done)
			stats, execErr = useCase.Execute(ctx)
			dashboard.Quit()
		}()

		if err := dashboard.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			cancel()
		}
		<-done

		if stats != nil {
			fmt.Fprintf(os.Stderr, "%s\n", stats)
		}
	} else {
		useCase.RegisterReporter(presenter.NewConsole(presenter.ConsoleConfig{
			Out:      os.Stderr,
			Verbose:  config.Verbose,
			Progress: config.Progress,
		}))
		stats, execErr = useCase.Execute(ctx)
	}

	if err := useCase.Close(); err != nil && execErr == nil {
		execErr = err
	}
	if execErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", execErr)
		os.Exit(1)
	}
}
