/*
NAME
  delta.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package engine

// actualDeltaP returns the current delay expressed in periods: periods
// still sitting in the memory ring plus periods still queued in the
// hardware playback ring.
func actualDeltaP(periodsInMemRing, hwPeriods, availPlaybackFrames, periodFrames int) int {
	periodsInHWRing := hwPeriods - availPlaybackFrames/periodFrames
	return periodsInMemRing + periodsInHWRing
}

// timeOffMs returns the signed millisecond error between the target delay
// and the actual delay. Positive means the engine must stretch to buffer
// more; negative means it must compress to purge.
func timeOffMs(targetDeltaP, actualDeltaP int, periodTimeUs float64) float64 {
	return float64(targetDeltaP-actualDeltaP) * periodTimeUs / 1000
}
