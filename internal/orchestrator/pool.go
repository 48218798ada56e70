package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/lamim/grporeward/internal/metrics"
	"github.com/lamim/grporeward/pkg/models"
)

type scoreSampleParam struct {
	idx        int
	ctx        context.Context
	sample     *models.Sample
	dispatcher *Dispatcher
	metrics    *metrics.Collector
	results    []Outcome
	wg         *sync.WaitGroup
}

func (p *scoreSampleParam) reset() {
	p.idx = 0
	p.ctx = nil
	p.sample = nil
	p.dispatcher = nil
	p.metrics = nil
	p.results = nil
	p.wg = nil
}

var scoreSampleParamPool = &sync.Pool{
	New: func() any { return new(scoreSampleParam) },
}

// createScoringPool builds the per-batch worker pool; callers must Release it
func createScoringPool(size int) (*ants.PoolWithFunc, error) {
	if size <= 0 {
		return nil, errors.New("pool size must be greater than 0")
	}
	pool, err := ants.NewPoolWithFunc(size, func(args any) {
		param, ok := args.(*scoreSampleParam)
		if !ok {
			panic("scoring pool args type error")
		}
		wg := param.wg
		collector := param.metrics
		if collector != nil {
			collector.WorkerStarted()
		}
		defer func() {
			if collector != nil {
				collector.WorkerFinished()
			}
			wg.Done()
			param.reset()
			scoreSampleParamPool.Put(param)
		}()
		// Each worker writes only its own slot
		param.results[param.idx] = param.dispatcher.Dispatch(param.ctx, param.idx, param.sample)
	})
	if err != nil {
		return nil, fmt.Errorf("create scoring pool: %w", err)
	}
	return pool, nil
}
