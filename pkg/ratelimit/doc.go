// Package ratelimit implements fixed-window usage counters.
//
// A window opens on the first call for a key and lasts for the configured
// duration; every call inside it increments the counter and calls beyond the
// limit are denied until the window expires. MemoryStore keeps counters in
// process, RedisStore shares them between instances.
package ratelimit
