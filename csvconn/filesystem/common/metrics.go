package common

import (
	"sync"
	"time"
)

// PerformanceMetrics defines the interface for performance tracking
type PerformanceMetrics interface {
	GetMetrics() map[string]interface{}
}

// BaseMetrics provides common fields used across different metrics types
type BaseMetrics struct {
	TotalOperations int64
	SuccessfulOps   int64
	FailedOps       int64
	LastOperation   time.Time
	Mu              sync.RWMutex
}

// UpdateBaseMetrics updates common metrics fields
func (bm *BaseMetrics) UpdateBaseMetrics(success bool) {
	bm.Mu.Lock()
	defer bm.Mu.Unlock()

	bm.TotalOperations++
	if success {
		bm.SuccessfulOps++
	} else {
		bm.FailedOps++
	}
	bm.LastOperation = time.Now()
}

// GetBaseMetrics returns the common metrics as a map
func (bm *BaseMetrics) GetBaseMetrics() map[string]interface{} {
	bm.Mu.RLock()
	defer bm.Mu.RUnlock()

	return map[string]interface{}{
		"total_operations": bm.TotalOperations,
		"successful_ops":   bm.SuccessfulOps,
		"failed_ops":       bm.FailedOps,
		"last_operation":   bm.LastOperation,
	}
}

// FileOperationMetrics tracks performance for file operations
type FileOperationMetrics struct {
	BaseMetrics
	TotalBytesTransferred int64
	AverageSpeed          float64 // bytes per second
}

// UpdateMetrics updates file operation metrics
func (fom *FileOperationMetrics) UpdateMetrics(start time.Time, success bool, bytesTransferred int64) {
	fom.UpdateBaseMetrics(success)

	fom.Mu.Lock()
	defer fom.Mu.Unlock()

	duration := time.Since(start)
	if bytesTransferred > 0 {
		fom.TotalBytesTransferred += bytesTransferred
		if seconds := duration.Seconds(); seconds > 0 {
			fom.AverageSpeed = float64(fom.TotalBytesTransferred) / seconds
		}
	}
}

// GetMetrics returns file operation metrics as a map
func (fom *FileOperationMetrics) GetMetrics() map[string]interface{} {
	metrics := fom.GetBaseMetrics()
	fom.Mu.RLock()
	defer fom.Mu.RUnlock()

	metrics["total_bytes_transferred"] = fom.TotalBytesTransferred
	metrics["average_speed"] = fom.AverageSpeed
	return metrics
}

// SyncMetrics tracks synchronization passes of one object class
type SyncMetrics struct {
	BaseMetrics
	EntriesEmitted  int64
	DigestMatches   int64
	SnapshotsPruned int64
	PruneFailures   int64
	LastToken       string
	AveragePassTime time.Duration
}

// RecordPass updates the metrics after a synchronization pass
func (sm *SyncMetrics) RecordPass(start time.Time, success bool, emitted int, digestMatch bool, token string) {
	sm.UpdateBaseMetrics(success)

	sm.Mu.Lock()
	defer sm.Mu.Unlock()

	sm.EntriesEmitted += int64(emitted)
	if digestMatch {
		sm.DigestMatches++
	}
	if token != "" {
		sm.LastToken = token
	}

	// Calculate rolling average
	duration := time.Since(start)
	if sm.TotalOperations <= 1 {
		sm.AveragePassTime = duration
	} else {
		sm.AveragePassTime = (sm.AveragePassTime*time.Duration(sm.TotalOperations-1) + duration) / time.Duration(sm.TotalOperations)
	}
}

// RecordPrune counts pruned snapshots and failed removals
func (sm *SyncMetrics) RecordPrune(pruned, failed int) {
	sm.Mu.Lock()
	defer sm.Mu.Unlock()

	sm.SnapshotsPruned += int64(pruned)
	sm.PruneFailures += int64(failed)
}

// GetMetrics returns synchronization metrics as a map
func (sm *SyncMetrics) GetMetrics() map[string]interface{} {
	metrics := sm.GetBaseMetrics()
	sm.Mu.RLock()
	defer sm.Mu.RUnlock()

	metrics["entries_emitted"] = sm.EntriesEmitted
	metrics["digest_matches"] = sm.DigestMatches
	metrics["snapshots_pruned"] = sm.SnapshotsPruned
	metrics["prune_failures"] = sm.PruneFailures
	metrics["last_token"] = sm.LastToken
	metrics["average_pass_time"] = sm.AveragePassTime
	return metrics
}
