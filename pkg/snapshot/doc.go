// Package snapshot defines the traffic snapshot record, the decoders for its
// embedded JSON fields, and the source/sink contracts storage backends
// implement.
//
// A record carries three independently encoded blobs. Decoding one field never
// depends on another, so a malformed objects_total does not hide the same
// record's per-lane speeds.
//
//	counts, err := snapshot.DecodeObjectsTotal(rec.ObjectsTotal)
//	if errors.Is(err, snapshot.ErrMalformed) {
//		// field contributes nothing
//	}
package snapshot
