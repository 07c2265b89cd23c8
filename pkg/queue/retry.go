package queue

import (
	"math/rand"
	"time"
)

// RetryManager decides whether and when a failed task runs again.
type RetryManager struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func NewRetryManager(maxRetries int, baseDelay time.Duration) *RetryManager {
	return &RetryManager{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   baseDelay * 16,
	}
}

// ShouldRetry reports whether the task gets another attempt and the
// backoff delay before it.
func (r *RetryManager) ShouldRetry(task *Task, err error) (bool, time.Duration) {
	if err == nil {
		return false, 0
	}
	maxRetries := task.MaxRetries
	if maxRetries <= 0 {
		maxRetries = r.maxRetries
	}
	if task.Attempts >= maxRetries {
		return false, 0
	}
	return true, r.backoff(task.Attempts)
}

// backoff is exponential with ±25% jitter, capped at maxDelay.
func (r *RetryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return r.baseDelay
	}

	delay := r.baseDelay * time.Duration(1<<(attempt-1))
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	if rand.Intn(2) == 0 {
		delay += jitter
	} else {
		delay -= jitter
	}

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}
