// Package workers sizes bounded worker pools relative to available CPUs.
//
// The scanner itself processes files strictly sequentially; only
// read-only work (the total-file counting walk across library roots)
// fans out, and this package bounds that fan-out.
package workers
