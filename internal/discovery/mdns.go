// Package discovery advertises and locates board servers over mDNS.
package discovery

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD service name of a board server.
	ServiceType = "_wireboard._tcp"

	pathKey     = "path="
	defaultPath = "/ws"
)

// Service is a board server found on the local network.
type Service struct {
	Instance string
	Host     string
	Port     int
	Path     string
}

// URL returns the WebSocket endpoint of s.
func (s Service) URL() string {
	return "ws://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port)) + s.Path
}

// Advertiser answers mDNS queries for one server until Shutdown.
type Advertiser struct {
	server *mdns.Server
}

// Advertise announces a server listening on port. An empty instance
// falls back to the hostname.
func Advertise(instance string, port int) (*Advertiser, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, []string{pathKey + defaultPath})
	if err != nil {
		return nil, fmt.Errorf("create mDNS service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("start mDNS server: %w", err)
	}
	return &Advertiser{server: server}, nil
}

// Shutdown stops answering queries.
func (a *Advertiser) Shutdown() error {
	if a == nil || a.server == nil {
		return nil
	}
	return a.server.Shutdown()
}

// Lookup browses for board servers for up to timeout.
func Lookup(timeout time.Duration) ([]Service, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(chan []Service, 1)
	go func() {
		var out []Service
		for e := range entries {
			if s, ok := fromEntry(e); ok {
				out = append(out, s)
			}
		}
		found <- out
	}()

	err := mdns.Query(&mdns.QueryParam{
		Service:     ServiceType,
		Domain:      "local",
		Timeout:     timeout,
		Entries:     entries,
		DisableIPv6: true,
	})
	close(entries)
	services := <-found
	if err != nil {
		return nil, fmt.Errorf("mdns query: %w", err)
	}
	return services, nil
}

func fromEntry(e *mdns.ServiceEntry) (Service, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Service{}, false
	}
	return Service{
		Instance: instanceName(e.Name),
		Host:     e.AddrV4.String(),
		Port:     e.Port,
		Path:     pathFromInfo(e.InfoFields),
	}, true
}

// instanceName strips the service and domain labels from a full entry name.
func instanceName(full string) string {
	if i := strings.Index(full, "."+ServiceType); i > 0 {
		return strings.ReplaceAll(full[:i], `\ `, " ")
	}
	return full
}

func pathFromInfo(fields []string) string {
	for _, f := range fields {
		if p, ok := strings.CutPrefix(f, pathKey); ok && strings.HasPrefix(p, "/") {
			return p
		}
	}
	return defaultPath
}

// PortFromAddr extracts the numeric port of a listen address such as ":3001".
func PortFromAddr(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("listen address %q has no usable port", addr)
	}
	return port, nil
}
