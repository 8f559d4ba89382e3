// Package fetch owns the outbound HTTP side: the shared client with its tuned
// transport, small request helpers used by providers and the verifier, and the
// Fetcher that revalidates a cached archive with HEAD + ETag before falling
// back to a full GET streamed into the cache store.
package fetch
