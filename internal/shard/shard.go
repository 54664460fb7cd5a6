// Package shard distributes write batches for the DynamoDB backend.
package shard

import (
	"fmt"
	"hash/fnv"
)

// Index returns the worker a key belongs to.
// With numShards<=1, every key goes to worker 0.
// With numShards>1, keys are distributed by FNV-1a hash, so a given key is always
// written by the same worker.
func Index(key string, numShards int) int {
	if numShards <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(numShards))
}

// IntKey formats a numeric document id as a shard key.
func IntKey(id int64) string {
	return fmt.Sprintf("%d", id)
}

// Partition groups items into numShards buckets using key.
// Empty buckets are omitted; bucket order follows shard index.
func Partition[T any](items []T, numShards int, key func(T) string) [][]T {
	if numShards < 1 {
		numShards = 1
	}
	buckets := make([][]T, numShards)
	for _, it := range items {
		i := Index(key(it), numShards)
		buckets[i] = append(buckets[i], it)
	}
	out := make([][]T, 0, numShards)
	for _, b := range buckets {
		if len(b) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
