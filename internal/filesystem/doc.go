// Package filesystem provides filesystem helpers with retry logic for
// flaky network mounts (NFS stale file handles).
//
// Library roots frequently live on NFS; a stale handle mid-scan should
// cost a retry, not a skipped directory.
package filesystem
