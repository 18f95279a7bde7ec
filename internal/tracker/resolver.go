package tracker

import (
	"context"
	"errors"
	"net"

	"github.com/cenkalti/trackerscrape/internal/blocklist"
)

var (
	errIPv6     = errors.New("ipv6 is not supported")
	errNotIPv4  = errors.New("not ipv4 address")
	errBlocked  = errors.New("ip is blocked")
	errNoLookup = errors.New("host lookup returned no address")
)

// ResolveHost returns the first IPv4 address of host.
// Addresses in bl are refused. bl may be nil.
func ResolveHost(ctx context.Context, host string, bl *blocklist.Blocklist) (net.IP, error) {
	ip := net.ParseIP(host)
	if ip != nil {
		i4 := ip.To4()
		if i4 == nil {
			return nil, errIPv6
		}
		if bl != nil && bl.Blocked(i4) {
			return nil, errBlocked
		}
		return i4, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, errNoLookup
	}
	var ips []net.IP
	for _, ia := range addrs {
		i4 := ia.IP.To4()
		if i4 != nil {
			ips = append(ips, i4)
		}
	}
	if len(ips) == 0 {
		return nil, errNotIPv4
	}
	if bl != nil {
		for _, ip := range ips {
			if bl.Blocked(ip) {
				return nil, errBlocked
			}
		}
	}
	return ips[0], nil
}
