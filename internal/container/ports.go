package container

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
)

// natPort converts a container port to docker's "port/tcp" form.
func natPort(port int) nat.Port {
	return nat.Port(fmt.Sprintf("%d/tcp", port))
}

// exposedPortSet builds the ExposedPorts set of a container config.
func exposedPortSet(ports []int) nat.PortSet {
	set := make(nat.PortSet, len(ports))
	for _, p := range ports {
		set[natPort(p)] = struct{}{}
	}
	return set
}

// ephemeralBindings publishes each port on a host port chosen by the daemon.
func ephemeralBindings(ports []int) nat.PortMap {
	bindings := make(nat.PortMap, len(ports))
	for _, p := range ports {
		bindings[natPort(p)] = []nat.PortBinding{{HostIP: "", HostPort: ""}}
	}
	return bindings
}

// publishedPorts reads the host port of every published tcp port. IPv4 bindings
// win over IPv6 ones.
func publishedPorts(pm nat.PortMap) map[int]int {
	ports := make(map[int]int, len(pm))
	for port, bindings := range pm {
		if port.Proto() != "tcp" || len(bindings) == 0 {
			continue
		}
		hostPort, ok := pickBinding(bindings)
		if !ok {
			continue
		}
		ports[port.Int()] = hostPort
	}
	return ports
}

func pickBinding(bindings []nat.PortBinding) (int, bool) {
	sorted := append([]nat.PortBinding(nil), bindings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return !isIPv6(sorted[i].HostIP) && isIPv6(sorted[j].HostIP)
	})
	for _, b := range sorted {
		if p, err := strconv.Atoi(b.HostPort); err == nil && p > 0 {
			return p, true
		}
	}
	return 0, false
}

func isIPv6(ip string) bool {
	return strings.Contains(ip, ":")
}

// ParsePort parses a container port like "8080" or "8080/tcp".
func ParsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	number, proto, hasProto := strings.Cut(s, "/")
	if hasProto && proto != "tcp" {
		return 0, fmt.Errorf("unsupported protocol %q in port %s", proto, s)
	}

	port, err := strconv.Atoi(number)
	if err != nil {
		return 0, fmt.Errorf("invalid port: %s", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port out of range: %s", s)
	}
	return port, nil
}
