package launcher

// MaxWorkers caps the derived production worker count
const MaxWorkers = 8

// WorkerCount returns override when positive, otherwise cpus clamped to [1, MaxWorkers].
func WorkerCount(cpus, override int) int {
	if override > 0 {
		return override
	}
	return min(max(cpus, 1), MaxWorkers)
}
