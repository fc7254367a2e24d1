package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Processor runs a pool of workers over every job type with a
// registered handler, plus a gocron scheduler for recurring jobs.
type Processor struct {
	queue      *RedisQueue
	numWorkers int
	wg         sync.WaitGroup
	quit       chan struct{}
	scheduler  *gocron.Scheduler
}

// NewProcessor creates a new job processor
func NewProcessor(queue *RedisQueue, numWorkers int) *Processor {
	return &Processor{
		queue:      queue,
		numWorkers: numWorkers,
		quit:       make(chan struct{}),
		scheduler:  gocron.NewScheduler(time.UTC),
	}
}

// Scheduler exposes the gocron scheduler so jobs can register
// recurring work before Start.
func (p *Processor) Scheduler() *gocron.Scheduler {
	return p.scheduler
}

// Start starts the worker pool and the scheduler
func (p *Processor) Start() {
	log.Printf("Starting %d queue workers", p.numWorkers)

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.process(i)
	}

	p.scheduler.StartAsync()
}

// Stop stops the workers and waits for in-flight jobs to finish
func (p *Processor) Stop() {
	log.Println("Stopping queue workers")
	close(p.quit)
	p.wg.Wait()
	p.scheduler.Stop()
}

// process pulls jobs round-robin across registered job types
func (p *Processor) process(workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.quit:
			return
		default:
		}

		worked := false
		for _, jobType := range p.queue.jobTypes() {
			job, err := p.queue.Dequeue(jobType)
			if err != nil {
				log.Printf("Worker %d: error dequeueing %s: %v", workerID, jobType, err)
				continue
			}
			if job == nil {
				continue
			}

			worked = true
			p.run(workerID, job)
		}

		if !worked {
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// run executes one job against its handler
func (p *Processor) run(workerID int, job *Job) {
	handler, ok := p.queue.handler(job.Type)
	if !ok {
		log.Printf("Worker %d: no handler for job type %s", workerID, job.Type)
		return
	}

	log.Printf("Worker %d processing job %s (%s)", workerID, job.ID, job.Type)

	if err := handler(context.Background(), *job); err != nil {
		log.Printf("Worker %d: job %s failed: %v", workerID, job.ID, err)
		p.queue.Fail(job, err)
		return
	}

	p.queue.Complete(job)
}
