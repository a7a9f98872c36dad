// Package cache keeps message contents that could not be delivered because
// their channel was not connected. Entries survive restarts and are cleared
// only after the host confirms delivery.
package cache
