// Package arrow records workflow results as Apache Arrow batches.
//
// A batch run of `eric validate` produces one Entry per document; the report
// is written as an Arrow IPC stream so it can be loaded by pyarrow, DuckDB or
// any other Arrow reader without a bespoke format.
package arrow
