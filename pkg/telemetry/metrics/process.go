package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

// resourceUsage is one CPU/memory/socket sample for a supervised process.
type resourceUsage struct {
	cpuPercent  float64
	rssBytes    uint64
	openSockets int
}

// cpuSample remembers the previous CPU-time reading so percent can be
// computed as a delta over wall time.
type cpuSample struct {
	cpuSeconds float64
	takenAt    time.Time
}

// resourceSampler reads per-process stats from /proc. The first sample for a
// PID reports zero CPU since there is no delta yet.
type resourceSampler struct {
	mu   sync.Mutex
	prev map[int]cpuSample
}

func newResourceSampler() *resourceSampler {
	return &resourceSampler{prev: make(map[int]cpuSample)}
}

func (s *resourceSampler) sample(pid int) (resourceUsage, error) {
	proc, err := procfs.NewProc(pid)
	if err != nil {
		return resourceUsage{}, err
	}
	stat, err := proc.Stat()
	if err != nil {
		return resourceUsage{}, err
	}

	now := time.Now()
	cpu := stat.CPUTime()
	usage := resourceUsage{
		rssBytes:    uint64(stat.ResidentMemory()),
		openSockets: countSockets(proc),
	}

	s.mu.Lock()
	if prev, ok := s.prev[pid]; ok {
		wall := now.Sub(prev.takenAt).Seconds()
		if wall > 0 && cpu >= prev.cpuSeconds {
			usage.cpuPercent = (cpu - prev.cpuSeconds) / wall * 100
		}
	}
	s.prev[pid] = cpuSample{cpuSeconds: cpu, takenAt: now}
	s.mu.Unlock()

	return usage, nil
}

// countSockets counts the process's open socket file descriptors. A proxy
// child's socket count tracks its live connections plus its listeners.
func countSockets(proc procfs.Proc) int {
	targets, err := proc.FileDescriptorTargets()
	if err != nil {
		return 0
	}
	n := 0
	for _, target := range targets {
		if strings.HasPrefix(target, "socket:") {
			n++
		}
	}
	return n
}

func (s *resourceSampler) forget(pid int) {
	s.mu.Lock()
	delete(s.prev, pid)
	s.mu.Unlock()
}
