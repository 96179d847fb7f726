package metrics

import (
	"testing"
	"time"
)

func TestRecordLaunch(t *testing.T) {
	before := TotalLaunches()
	RecordLaunch("copy", 4096, 2*time.Millisecond)
	RecordLaunch("transpose", 64*64, 5*time.Millisecond)
	if got := TotalLaunches(); got != before+2 {
		t.Errorf("TotalLaunches = %d, want %d", got, before+2)
	}
}

func TestRecordScratchMemory(t *testing.T) {
	RecordScratchMemory(1024*1024, 3, 7)
	RecordScratchMemory(512*1024, 0, 7)
	// Gauges update in place - just verify no panic.
}

func TestRecordCacheLookup(t *testing.T) {
	RecordCacheLookup(true)
	RecordCacheLookup(false)
}

func TestRecordContractViolation(t *testing.T) {
	RecordContractViolation("transpose", "tile_alignment")
	RecordContractViolation("copy", "vector_alignment")
}

func TestRecordAbsmaxUpdate(t *testing.T) {
	RecordAbsmaxUpdate()
	RecordAbsmaxUpdate()
}
