// Optional LAN discovery for the paired-peer channel, via mDNS. A device
// advertises itself and the other end browses for it, so pairing does
// not require the user to type an address.
package peersync

import (
	"fmt"
	"time"

	"github.com/hashicorp/mdns"
)

const serviceType = "_metrocore-sync._tcp"

// Advertise registers deviceID on the LAN under serviceType at port,
// returning a server that must be shut down on teardown.
func Advertise(deviceID string, port int) (*mdns.Server, error) {
	info, err := mdns.NewMDNSService(deviceID, serviceType, "", "", port, nil, []string{"metrocore peer"})
	if err != nil {
		return nil, fmt.Errorf("peersync: build mdns service: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: info})
	if err != nil {
		return nil, fmt.Errorf("peersync: start mdns server: %w", err)
	}
	return server, nil
}

// PeerAddress is one discovered candidate peer.
type PeerAddress struct {
	DeviceID string
	Host     string
	Port     int
}

// Discover browses the LAN for serviceType for timeoutSeconds worth of
// responses and returns every peer found.
func Discover(timeoutSeconds int) ([]PeerAddress, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	var found []PeerAddress

	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			found = append(found, PeerAddress{
				DeviceID: e.Name,
				Host:     e.AddrV4.String(),
				Port:     e.Port,
			})
		}
	}()

	params := mdns.DefaultParams(serviceType)
	params.Entries = entries
	if timeoutSeconds > 0 {
		params.Timeout = time.Duration(timeoutSeconds) * time.Second
	}
	if err := mdns.Query(params); err != nil {
		close(entries)
		return nil, fmt.Errorf("peersync: mdns query: %w", err)
	}
	close(entries)
	<-done
	return found, nil
}
