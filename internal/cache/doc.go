// Package cache defines the disk-backed store that keeps downloaded template
// archives under <CacheDir>/<provider>/<name>/<version>.tar.gz together with a
// JSON sidecar holding the revalidation token. Writes go through a temp file
// and a rename so a reader in another process never observes a half-written
// blob. The package also owns the offline Mode that decides whether the
// fetcher may touch the network at all.
package cache
