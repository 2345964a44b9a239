// Package monitor samples host performance (CPU, memory, photo-disk
// space) for the web UI sidebar.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Mojo24x7/canon-eos-studio-remote/pkg/models"
)

// Service monitors host performance
type Service struct {
	updateInterval      time.Duration
	cpuSmoothingSamples int
	photosPath          string

	mu          sync.RWMutex
	cpuReadings []float64
	last        models.HostMetrics
}

// New creates a new monitoring service watching the photo root's disk.
func New(updateInterval time.Duration, cpuSamples int, photosPath string) *Service {
	if cpuSamples < 1 {
		cpuSamples = 1
	}
	return &Service{
		updateInterval:      updateInterval,
		cpuSmoothingSamples: cpuSamples,
		photosPath:          photosPath,
		cpuReadings:         make([]float64, 0, cpuSamples),
	}
}

// Start begins sampling until ctx is cancelled.
func (s *Service) Start(ctx context.Context) <-chan models.HostMetrics {
	metricsChan := make(chan models.HostMetrics, 10)

	go func() {
		defer close(metricsChan)

		ticker := time.NewTicker(s.updateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics := s.collect()
				select {
				case metricsChan <- metrics:
				default:
					// Channel full, skip this update
				}
			}
		}
	}()

	return metricsChan
}

// Last returns the most recent sample.
func (s *Service) Last() models.HostMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Service) collect() models.HostMetrics {
	var metrics models.HostMetrics

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		metrics.CPUPercent = s.smoothCPU(percents[0])
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		metrics.MemoryUsedBytes = vm.Used
		metrics.MemoryTotalBytes = vm.Total
		metrics.MemoryPercent = vm.UsedPercent
	}

	if usage, err := disk.Usage(s.photosPath); err == nil {
		metrics.PhotosFreeBytes = usage.Free
		metrics.PhotosTotalBytes = usage.Total
		metrics.PhotosFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
	}

	s.mu.Lock()
	s.last = metrics
	s.mu.Unlock()

	return metrics
}

func (s *Service) smoothCPU(reading float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cpuReadings = append(s.cpuReadings, reading)
	if len(s.cpuReadings) > s.cpuSmoothingSamples {
		s.cpuReadings = s.cpuReadings[1:]
	}

	var sum float64
	for _, r := range s.cpuReadings {
		sum += r
	}
	return sum / float64(len(s.cpuReadings))
}
