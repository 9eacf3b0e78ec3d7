package scanner

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Load thresholds above which enrichment workers briefly back off between
// files. Scans run on user machines; saturating them helps nobody.
const (
	throttleCPUPercent = 90.0
	throttleMemPercent = 92.0
	throttlePause      = 100 * time.Millisecond
	sampleInterval     = 3 * time.Second
)

// LoadMonitor samples host CPU and memory pressure in the background and
// tells workers when to slow down.
type LoadMonitor struct {
	mu       sync.RWMutex
	cpuUsage float64
	memUsage float64
	sampled  time.Time
}

// NewLoadMonitor returns a monitor that refreshes lazily; the first caller
// after the sample interval pays for the refresh.
func NewLoadMonitor() *LoadMonitor {
	return &LoadMonitor{}
}

func (m *LoadMonitor) refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Since(m.sampled) < sampleInterval {
		return
	}
	m.sampled = time.Now()

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		m.cpuUsage = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.memUsage = vm.UsedPercent
	}
}

// Metrics returns the last sampled CPU and memory usage percentages.
func (m *LoadMonitor) Metrics() (cpuUsage, memUsage float64) {
	m.refresh()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cpuUsage, m.memUsage
}

// Throttle sleeps briefly when the host is under heavy load. Called by
// workers between files, so the pause bounds I/O pressure without stalling
// an in-flight read.
func (m *LoadMonitor) Throttle() {
	cpuUsage, memUsage := m.Metrics()
	if cpuUsage > throttleCPUPercent || memUsage > throttleMemPercent {
		time.Sleep(throttlePause)
	}
}
