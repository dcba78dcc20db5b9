package registry

import (
	"log"
	"runtime"
)

// DefaultCacheFraction is the share of physical RAM given to the block cache
// when the capacity is sized automatically.
const DefaultCacheFraction = 0.25

// minAutoCacheBytes is the smallest capacity AutoCacheBytes will return.
const minAutoCacheBytes = 64 << 20

// AutoCacheBytes sizes the block cache from total system RAM: fraction of it,
// less the memory the process already holds. It falls back to
// DefaultCacheBytes when RAM can not be detected.
func AutoCacheBytes(fraction float64, verbose bool) int64 {
	total, err := totalSystemRAM()
	if err != nil {
		if verbose {
			log.Printf("Cannot detect system RAM: %v; using %d MB block cache", err, DefaultCacheBytes>>20)
		}
		return DefaultCacheBytes
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	limit := int64(float64(total)*fraction) - int64(m.Sys)
	if limit < minAutoCacheBytes {
		limit = minAutoCacheBytes
	}
	if verbose {
		log.Printf("System RAM: %.1f GB, block cache: %d MB (%.0f%% of RAM)",
			float64(total)/(1<<30), limit>>20, fraction*100)
	}
	return limit
}
