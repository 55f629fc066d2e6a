package disk

import (
	"fmt"

	psdisk "github.com/shirou/gopsutil/v4/disk"
)

// Usage describes the filesystem that contains a path
type Usage struct {
	Path        string  `json:"path" yaml:"path"`
	TotalBytes  uint64  `json:"total_bytes" yaml:"total_bytes"`
	FreeBytes   uint64  `json:"free_bytes" yaml:"free_bytes"`
	UsedBytes   uint64  `json:"used_bytes" yaml:"used_bytes"`
	UsedPercent float64 `json:"used_percent" yaml:"used_percent"`
}

// VolumeUsage returns capacity figures for the volume holding path
func VolumeUsage(path string) (Usage, error) {
	st, err := psdisk.Usage(path)
	if err != nil {
		return Usage{}, fmt.Errorf("volume usage %s: %w", path, err)
	}
	return Usage{
		Path:        path,
		TotalBytes:  st.Total,
		FreeBytes:   st.Free,
		UsedBytes:   st.Used,
		UsedPercent: st.UsedPercent,
	}, nil
}

// FreePercent returns the share of the volume still available
func (u Usage) FreePercent() float64 {
	if u.TotalBytes == 0 {
		return 0
	}
	return float64(u.FreeBytes) / float64(u.TotalBytes) * 100.0
}
