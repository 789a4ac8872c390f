// Package metrics defines the optional statistics-collection seam the
// batch driver reports into after every batch; leaf-inspection counts
// are non-zero only when COLLECT_STATISTICS is set. It is
// adapted from
// rpcpool-yellowstone-faithful/metrics/metrics.go's collector-struct
// style, but scoped to one registry per Recorder instead of package-level
// global vectors, so a process can hold more than one Index without a
// duplicate-registration panic.
package metrics

// Recorder receives observations from a batch driver. A nil Recorder
// (the default, set via Index.WithRecorder) disables metrics entirely;
// the core never imports prometheus directly, only this interface, so a
// caller who never wires a Recorder pays nothing for it.
type Recorder interface {
	// ObserveIndexSize is called when the Recorder is attached through
	// Index.WithRecorder, with the index's node and bucket counts.
	ObserveIndexSize(nodes, buckets int)
	// ObserveBatch is called once per Knn/KnnRadii call with the number
	// of query columns served and the total leaf points inspected
	// across them (0 when COLLECT_STATISTICS was not set).
	ObserveBatch(queries int, leafPointsInspected uint64)
}
