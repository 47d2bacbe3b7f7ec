// Package ingest wires the whole pipeline for one run:
//
//	manifest -> loader -> orchestrator -> normalizer -> store.Commit
//
// Per-unit failures never fail a run; they are counted in the Summary. The
// only error Run returns is a failure to persist (or to normalize, which
// would indicate a bug), and in that case nothing was written.
package ingest
