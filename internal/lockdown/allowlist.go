// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package lockdown

import (
	"fmt"
	"net/netip"
	"strings"
)

// AllowList holds addresses and networks that bypass an active lockdown.
type AllowList struct {
	prefixes []netip.Prefix
}

// ParseAllowList accepts single addresses ("203.0.113.5") and CIDRs
// ("10.0.0.0/8"). Blank entries are ignored.
func ParseAllowList(entries []string) (*AllowList, error) {
	al := &AllowList{}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("allow-list entry %q: %w", entry, err)
			}
			al.prefixes = append(al.prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("allow-list entry %q: %w", entry, err)
		}
		addr = addr.Unmap()
		al.prefixes = append(al.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return al, nil
}

// Contains reports whether ip is allowed. Unparseable input never matches.
func (al *AllowList) Contains(ip string) bool {
	if al == nil || len(al.prefixes) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range al.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (al *AllowList) Len() int {
	if al == nil {
		return 0
	}
	return len(al.prefixes)
}
