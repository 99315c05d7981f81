package workload

import (
	"fmt"

	"k8s.io/apimachinery/pkg/api/resource"
)

// ParseMemory converts a memory quantity such as "512Mi" or "1G" to bytes.
func ParseMemory(s string) (int64, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("workload: parse memory %q: %w", s, err)
	}
	if q.Sign() < 0 {
		return 0, fmt.Errorf("workload: memory must be non-negative: %s", s)
	}
	return q.Value(), nil
}

// ParseCPU converts a CPU quantity such as "0.5" or "500m" to nanocores.
func ParseCPU(s string) (int64, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("workload: parse CPU %q: %w", s, err)
	}
	if q.Sign() < 0 {
		return 0, fmt.Errorf("workload: CPU must be non-negative: %s", s)
	}
	return q.MilliValue() * 1e6, nil
}

// FormatMemory renders bytes as a binary-SI quantity ("512Mi").
func FormatMemory(bytes int64) string {
	return resource.NewQuantity(bytes, resource.BinarySI).String()
}

// FormatCPU renders nanocores as a decimal quantity ("500m", "2").
func FormatCPU(nanocores int64) string {
	return resource.NewMilliQuantity(nanocores/1e6, resource.DecimalSI).String()
}
