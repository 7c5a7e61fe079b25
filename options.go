package rtkernel

import "time"

// kernelConfig collects the options resolved by [NewKernel].
type kernelConfig struct {
	maxPriority uint16
	logger      Logger
	metrics     bool
	hal         HAL
	scheduler   Scheduler
	timers      TimerDriver
	tickPeriod  time.Duration
}

// KernelOption configures a [Kernel] at construction time, modeled on the
// teacher package's functional-option pattern (LoopOption/resolveLoopOptions).
type KernelOption interface {
	apply(*kernelConfig)
}

type kernelOptionFunc func(*kernelConfig)

func (f kernelOptionFunc) apply(c *kernelConfig) { f(c) }

// WithMaxPriority sets the number of distinct priority levels, 0 being
// the most urgent. Must be called before any thread is created. Defaults
// to 32.
func WithMaxPriority(n uint16) KernelOption {
	return kernelOptionFunc(func(c *kernelConfig) { c.maxPriority = n })
}

// WithLogger installs a structured [Logger]. Defaults to [NoOpLogger].
func WithLogger(l Logger) KernelOption {
	return kernelOptionFunc(func(c *kernelConfig) { c.logger = l })
}

// WithMetrics enables atomic counter collection, retrievable via
// [Kernel.Metrics].
func WithMetrics(enabled bool) KernelOption {
	return kernelOptionFunc(func(c *kernelConfig) { c.metrics = enabled })
}

// WithHAL overrides the default mutex-backed [HAL]. Intended for
// hardware-backed embedders or for tests that want to observe
// critical-section entry/exit.
func WithHAL(h HAL) KernelOption {
	return kernelOptionFunc(func(c *kernelConfig) { c.hal = h })
}

// WithScheduler overrides the default ready-table [Scheduler].
func WithScheduler(s Scheduler) KernelOption {
	return kernelOptionFunc(func(c *kernelConfig) { c.scheduler = s })
}

// WithTimerDriver overrides the default heap-based [TimerDriver].
func WithTimerDriver(t TimerDriver) KernelOption {
	return kernelOptionFunc(func(c *kernelConfig) { c.timers = t })
}

// WithTickPeriod sets the wall-clock duration of one tick for the
// built-in software tick driver started by [Kernel.RunTickDriver]. It has
// no effect if the embedder drives ticks manually via [Kernel.Tick].
func WithTickPeriod(d time.Duration) KernelOption {
	return kernelOptionFunc(func(c *kernelConfig) { c.tickPeriod = d })
}

func resolveKernelConfig(opts []KernelOption) *kernelConfig {
	c := &kernelConfig{
		maxPriority: 32,
		logger:      NoOpLogger{},
		tickPeriod:  time.Millisecond,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		o.apply(c)
	}
	return c
}
