package storage

import (
	"context"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// SweepOptions 后台清理的并发与速率限制
type SweepOptions struct {
	Concurrency      int
	DeletesPerSecond float64
}

const defaultSweepConcurrency = 8

// sweepJob 迁移结束后删除一批文件，单个文件失败只记录日志
type sweepJob struct {
	ctx      context.Context
	provider string
	runID    string
	store    objectStore
	files    []string
	opts     SweepOptions
}

func (j *sweepJob) Execute() {
	deleted, failed := j.run()
	if failed > 0 {
		log.Warnf("[%s] cleanup for migration %s finished: %d deleted, %d failed", j.provider, j.runID, deleted, failed)
		return
	}
	log.Infof("[%s] cleanup for migration %s finished: %d deleted", j.provider, j.runID, deleted)
}

func (j *sweepJob) run() (deleted, failed int64) {
	concurrency := j.opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}

	limit := rate.Inf
	if j.opts.DeletesPerSecond > 0 {
		limit = rate.Limit(j.opts.DeletesPerSecond)
	}
	limiter := rate.NewLimiter(limit, concurrency)

	var ok, bad atomic.Int64
	g, ctx := errgroup.WithContext(j.ctx)
	g.SetLimit(concurrency)

	for _, file := range j.files {
		if err := limiter.Wait(ctx); err != nil {
			log.Warnf("[%s] cleanup for migration %s interrupted: %v", j.provider, j.runID, err)
			break
		}
		g.Go(func() error {
			if err := j.store.Delete(ctx, file); err != nil {
				bad.Add(1)
				log.Errorf("[%s] failed to delete '%s': %v", j.provider, file, err)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return ok.Load(), bad.Load()
}
