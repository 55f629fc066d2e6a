package disk

import "fmt"

var units = []string{"B", "KB", "MB", "GB", "TB"}

// HumanReadable formats a byte count in base-1024 units with two decimals
func HumanReadable(bytes uint64) string {
	if bytes == 0 {
		return "0 B"
	}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", size, units[i])
}
