// Channel registry and per-IP admission control
//
// Tracks which channel is currently being published and by whom, purely for
// publish-collision rejection and remote-kill lookups (control-plane, admin
// pub/sub). This is deliberately NOT a play/subscriber fan-out mechanism:
// there is no player list and no GOP cache here, unlike the teacher's
// RTMPChannel, because this server never re-distributes FLV bytes to other
// RTMP clients.

package main

import (
	"net"
	"os"
	"strings"
	"sync"

	"github.com/netdata/go.d.plugin/pkg/iprange"
)

// A channel currently known to the registry.
type ChannelRegistryEntry struct {
	channel       string
	key           string
	stream_id     string
	publisher     uint64
	is_publishing bool
}

// Tracks active channels and per-IP connection counts.
type ChannelRegistry struct {
	mutex    *sync.Mutex
	channels map[string]*ChannelRegistryEntry

	ip_mutex  *sync.Mutex
	ip_count  map[string]uint32
	ip_limit  uint32
	whitelist string
}

func NewChannelRegistry(ipLimit uint32, whitelist string) *ChannelRegistry {
	return &ChannelRegistry{
		mutex:     &sync.Mutex{},
		channels:  make(map[string]*ChannelRegistryEntry),
		ip_mutex:  &sync.Mutex{},
		ip_count:  make(map[string]uint32),
		ip_limit:  ipLimit,
		whitelist: whitelist,
	}
}

func (reg *ChannelRegistry) isPublishing(channel string) bool {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()

	return reg.channels[channel] != nil && reg.channels[channel].is_publishing
}

// SetPublisher registers session s as the publisher of channel. Returns
// false if the channel already has an active publisher (collision).
func (reg *ChannelRegistry) SetPublisher(channel string, key string, stream_id string, s *RTMPSession) bool {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()

	if reg.channels[channel] != nil && reg.channels[channel].is_publishing {
		return false
	}

	if reg.channels[channel] == nil {
		reg.channels[channel] = &ChannelRegistryEntry{
			channel:       channel,
			key:           key,
			stream_id:     stream_id,
			is_publishing: true,
			publisher:     s.id,
		}
	} else {
		reg.channels[channel].key = key
		reg.channels[channel].stream_id = stream_id
		reg.channels[channel].is_publishing = true
		reg.channels[channel].publisher = s.id
	}

	return true
}

func (reg *ChannelRegistry) RemovePublisher(channel string) {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()

	entry := reg.channels[channel]
	if entry == nil {
		return
	}

	entry.publisher = 0
	entry.is_publishing = false
	delete(reg.channels, channel)
}

// AddIP records a new connection from ip, subject to the configured limit.
// Returns false if the limit has been reached.
func (reg *ChannelRegistry) AddIP(ip string) bool {
	reg.ip_mutex.Lock()
	defer reg.ip_mutex.Unlock()

	c := reg.ip_count[ip]

	if c >= reg.ip_limit {
		return false
	}

	reg.ip_count[ip] = c + 1

	return true
}

func (reg *ChannelRegistry) RemoveIP(ip string) {
	reg.ip_mutex.Lock()
	defer reg.ip_mutex.Unlock()

	c := reg.ip_count[ip]

	if c <= 1 {
		delete(reg.ip_count, ip)
	} else {
		reg.ip_count[ip] = c - 1
	}
}

func (reg *ChannelRegistry) isIPExempted(ipStr string) bool {
	if reg.whitelist == "" {
		return false
	}

	if reg.whitelist == "*" {
		return true
	}

	ip := net.ParseIP(ipStr)

	parts := strings.Split(reg.whitelist, ",")

	for i := 0; i < len(parts); i++ {
		rang, e := iprange.ParseRange(parts[i])

		if e != nil {
			LogError(e)
			continue
		}

		if rang.Contains(ip) {
			return true
		}
	}

	return false
}

func concurrentLimitWhitelistFromEnv() string {
	return os.Getenv("CONCURRENT_LIMIT_WHITELIST")
}
