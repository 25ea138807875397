// Package cache defines the disk-backed thumbnail store that maps cache keys
// onto CachePath/<prefix>/<key>.body payloads with a .meta JSON sidecar
// carrying content type and TTL timestamps. The store exposes read/write
// primitives with safe semantics (temp file + rename), treats expired entries
// as absent on every read path, and reports hit/miss/entry counters through
// an injected Stats tracker. The Sweeper builds on ListExpired/Remove to
// reclaim expired entries periodically or on demand.
package cache
