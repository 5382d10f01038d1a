// Package pipeline runs the per-buffer processing chain: gain and
// equalization, room correction and binaural rendering, followed by the
// output clip stage.
//
// An [Orchestrator] owns a bounded buffer pool and every stage. Each call to
// [Orchestrator.Process] is timed against the latency budget. A buffer that
// overruns the budget is still delivered and only counted. Sustained fatal
// overruns switch the orchestrator into bypass, where only the DSP stage
// runs, until processing is comfortably fast again. [Orchestrator.SetBypassed]
// forces bypass independently of that recovery.
//
// Each Process call borrows one output buffer from the pool and the caller
// hands it back with [Orchestrator.Release].
//
// Configuration is read from YAML with [LoadConfig]:
//
//	sample_rate: 48000
//	buffer_size: 256
//	hrtf_quality: premium
//	room:
//	  dimensions: {width: 6, length: 5, height: 2.7}
//	  absorption: {left: 0.4, right: 0.4, back: 0.5, front: 0.5, floor: 0.2, ceiling: 0.6}
package pipeline
