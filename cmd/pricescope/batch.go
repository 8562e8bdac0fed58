package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"priceScope/internal/config"
	"priceScope/internal/model"
)

func runBatch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadBatch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Extract.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(cfg.Jobs) == 0 {
		return fmt.Errorf("batch mode requires a jobs list in the config file")
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe, err := newPipeline(ctx, cfg.Extract, logger)
	if err != nil {
		return err
	}
	defer pipe.Close()

	logger.Info("batch start",
		zap.Int("jobs", len(cfg.Jobs)),
		zap.Int("workers", workers),
	)

	jobs := make(chan config.BatchJob)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0
	empty := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				err := pipe.runJob(ctx, job)
				if err == nil {
					continue
				}
				mu.Lock()
				if errors.Is(err, model.ErrNoDataFound) || errors.Is(err, model.ErrNoPriceableSwaps) {
					empty++
				} else {
					failed++
				}
				mu.Unlock()
				logger.Warn("job failed",
					zap.String("token", job.Token),
					zap.String("pool", job.Pool),
					zap.Error(err))
			}
		}()
	}

	for _, job := range cfg.Jobs {
		select {
		case <-ctx.Done():
		case jobs <- job:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info("batch complete",
		zap.Int("jobs", len(cfg.Jobs)),
		zap.Int("empty", empty),
		zap.Int("failed", failed),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(cfg.Jobs))
	}
	return nil
}
