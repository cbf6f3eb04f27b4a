package evaluator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// VMPool manages a pool of reusable JavaScript VM instances
type VMPool struct {
	pool          chan *PooledVM
	utilities     *UtilityRegistry
	config        *Config
	maxSize       int
	maxReuseCount int
	currentSize   int32
	totalCreated  int64
	totalAcquired int64
	mu            sync.Mutex
	closed        bool
}

// PooledVM is a VM instance owned by the pool
type PooledVM struct {
	vm         *goja.Runtime
	baseline   map[string]struct{}
	lastUsedAt time.Time
	reuseCount int
	mu         sync.RWMutex
}

// PoolConfig sizes the VM pool
type PoolConfig struct {
	MinSize       int // VMs created up front
	MaxSize       int // VMs alive at once
	MaxReuseCount int // uses before a VM is recreated
}

// PoolStats reports pool counters
type PoolStats struct {
	CurrentSize   int
	MaxSize       int
	TotalCreated  int64
	TotalAcquired int64
	Available     int
}

// DefaultPoolConfig returns the default pool configuration
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinSize:       1,
		MaxSize:       16,
		MaxReuseCount: 500,
	}
}

// NewVMPool creates a pool and pre-creates MinSize VMs
func NewVMPool(config *Config, poolConfig PoolConfig, logger *zap.Logger) (*VMPool, error) {
	if poolConfig.MinSize < 0 {
		poolConfig.MinSize = 0
	}
	if poolConfig.MaxSize <= 0 {
		poolConfig.MaxSize = DefaultPoolConfig().MaxSize
	}
	if poolConfig.MinSize > poolConfig.MaxSize {
		poolConfig.MinSize = poolConfig.MaxSize
	}
	if poolConfig.MaxReuseCount <= 0 {
		poolConfig.MaxReuseCount = DefaultPoolConfig().MaxReuseCount
	}

	p := &VMPool{
		pool:          make(chan *PooledVM, poolConfig.MaxSize),
		utilities:     NewUtilityRegistry(logger),
		config:        config,
		maxSize:       poolConfig.MaxSize,
		maxReuseCount: poolConfig.MaxReuseCount,
	}

	for i := 0; i < poolConfig.MinSize; i++ {
		vm, err := p.createVM()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create initial VM: %w", err)
		}
		p.pool <- vm
	}
	return p, nil
}

// Acquire takes a VM from the pool, creating one while under MaxSize and
// waiting otherwise.
func (p *VMPool) Acquire(ctx context.Context) (*PooledVM, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("pool is closed")
	}
	p.mu.Unlock()

	atomic.AddInt64(&p.totalAcquired, 1)

	select {
	case vm, ok := <-p.pool:
		if !ok {
			return nil, fmt.Errorf("pool is closed")
		}
		return p.checkout(vm)
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if int(atomic.LoadInt32(&p.currentSize)) < p.maxSize {
		return p.createVM()
	}

	select {
	case vm, ok := <-p.pool:
		if !ok {
			return nil, fmt.Errorf("pool is closed")
		}
		return p.checkout(vm)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// checkout replaces unhealthy or worn-out VMs before handing them out.
func (p *VMPool) checkout(vm *PooledVM) (*PooledVM, error) {
	if vm == nil || !p.isVMHealthy(vm) || vm.reuseCount+1 >= p.maxReuseCount {
		p.destroyVM(vm)
		newVM, err := p.createVM()
		if err != nil {
			return nil, fmt.Errorf("failed to recreate VM: %w", err)
		}
		return newVM, nil
	}
	vm.lastUsedAt = time.Now()
	vm.reuseCount++
	return vm, nil
}

// Release resets a VM and returns it to the pool
func (p *VMPool) Release(vm *PooledVM) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.destroyVM(vm)
		return nil
	}

	if err := p.resetVM(vm); err != nil {
		p.destroyVM(vm)
		return fmt.Errorf("failed to reset VM: %w", err)
	}

	select {
	case p.pool <- vm:
	default:
		p.destroyVM(vm)
	}
	return nil
}

func (p *VMPool) createVM() (*PooledVM, error) {
	vm := goja.New()

	if err := NewSandbox(p.config).Apply(vm); err != nil {
		return nil, fmt.Errorf("failed to create secure context: %w", err)
	}
	if err := p.utilities.RegisterEnabled(vm, p.config); err != nil {
		return nil, fmt.Errorf("failed to register utilities: %w", err)
	}

	baseline := make(map[string]struct{})
	for _, name := range vm.GlobalObject().GetOwnPropertyNames() {
		baseline[name] = struct{}{}
	}

	atomic.AddInt32(&p.currentSize, 1)
	atomic.AddInt64(&p.totalCreated, 1)

	return &PooledVM{vm: vm, baseline: baseline, lastUsedAt: time.Now()}, nil
}

// resetVM deletes globals a script added since the VM was created.
func (p *VMPool) resetVM(vm *PooledVM) error {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.vm == nil {
		return nil
	}
	vm.vm.ClearInterrupt()
	global := vm.vm.GlobalObject()
	for _, name := range global.GetOwnPropertyNames() {
		if _, ok := vm.baseline[name]; ok {
			continue
		}
		// Non-configurable globals stay; they are overwritten on the next run.
		_ = global.Delete(name)
	}
	if _, err := vm.vm.RunString("1"); err != nil {
		return fmt.Errorf("vm unusable after reset: %w", err)
	}
	return nil
}

func (p *VMPool) destroyVM(vm *PooledVM) {
	if vm == nil {
		return
	}
	vm.mu.Lock()
	alive := vm.vm != nil
	vm.vm = nil
	vm.mu.Unlock()
	if alive {
		atomic.AddInt32(&p.currentSize, -1)
	}
}

func (p *VMPool) isVMHealthy(vm *PooledVM) bool {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	if vm.vm == nil {
		return false
	}
	_, err := vm.vm.RunString("1+1")
	return err == nil
}

// Close closes the pool and destroys all pooled VMs
func (p *VMPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.pool)
	for vm := range p.pool {
		p.destroyVM(vm)
	}
	return nil
}

// Stats returns pool statistics
func (p *VMPool) Stats() PoolStats {
	return PoolStats{
		CurrentSize:   int(atomic.LoadInt32(&p.currentSize)),
		MaxSize:       p.maxSize,
		TotalCreated:  atomic.LoadInt64(&p.totalCreated),
		TotalAcquired: atomic.LoadInt64(&p.totalAcquired),
		Available:     len(p.pool),
	}
}
