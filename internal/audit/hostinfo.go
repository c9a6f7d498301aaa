package audit

import (
	"net"
	"os"
	"strconv"
)

// unknownHost is the sentinel used when host metadata cannot be resolved.
// Resolution failure must never prevent the logger from starting.
const unknownHost = "unknown"

// HostInfo describes the emitting process. It is resolved once at logger
// construction and treated as immutable afterwards.
type HostInfo struct {
	Host      string
	IPAddress string
	Port      string
}

// ResolveHostInfo resolves the local host name and a non-loopback address.
// Any failure yields the "unknown" sentinel for the affected field.
func ResolveHostInfo(port int) HostInfo {
	info := HostInfo{
		Host:      unknownHost,
		IPAddress: unknownHost,
		Port:      strconv.Itoa(port),
	}
	if port <= 0 {
		info.Port = unknownHost
	}

	hostname, err := os.Hostname()
	if err != nil {
		return info
	}
	info.Host = hostname

	if ip := localIPAddress(hostname); ip != "" {
		info.IPAddress = ip
	}

	return info
}

// localIPAddress returns the first usable address for the host, preferring
// non-loopback IPv4 addresses.
func localIPAddress(hostname string) string {
	addrs, err := net.LookupHost(hostname)
	if err != nil || len(addrs) == 0 {
		return fallbackInterfaceAddress()
	}
	for _, addr := range addrs {
		ip := net.ParseIP(addr)
		if ip != nil && !ip.IsLoopback() && ip.To4() != nil {
			return addr
		}
	}
	return addrs[0]
}

// fallbackInterfaceAddress scans network interfaces when hostname lookup
// fails.
func fallbackInterfaceAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return ""
}
