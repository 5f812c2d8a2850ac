// Package cache stores synthesized audio on disk so identical requests are
// not paid for twice. Entries are zstd-compressed and evicted least recently
// used first once the size budget is exceeded.
package cache
