package network

import (
	"context"
	"encoding/binary"
	ierror "errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/simongiter/ml-hub/pkg/defaults"
	"github.com/simongiter/ml-hub/pkg/errors"
	"github.com/simongiter/ml-hub/pkg/log"
	"github.com/simongiter/ml-hub/pkg/models"
	"github.com/simongiter/ml-hub/pkg/ports"

	"github.com/sirupsen/logrus"
)

// blockPrefixLen is the prefix length of every workspace network. One /24 per
// workspace keeps us clear of Docker's 31-network limit on the default pool.
const blockPrefixLen = 24

// ReservedRange is the supernet workspace networks are carved from. Every
// allocated subnet has the range's first octet and a second octet at or above
// the range's starting second octet.
type ReservedRange struct {
	FirstOctet  byte
	SecondOctet byte
}

// DefaultReservedRange returns the 172.33.0.0-and-up range, directly above
// Docker's own default address pool.
func DefaultReservedRange() ReservedRange {
	return ReservedRange{
		FirstOctet:  defaults.ReservedFirstOctet,
		SecondOctet: defaults.ReservedSecondOctet,
	}
}

// Base returns the first block of the reserved range.
func (r ReservedRange) Base() netip.Prefix {
	return netip.PrefixFrom(netip.AddrFrom4([4]byte{r.FirstOctet, r.SecondOctet, 0, 0}), blockPrefixLen)
}

// Contains reports whether the subnet falls inside the reserved range.
func (r ReservedRange) Contains(prefix netip.Prefix) bool {
	if !prefix.Addr().Is4() {
		return false
	}

	octets := prefix.Masked().Addr().As4()

	return octets[0] == r.FirstOctet && octets[1] >= r.SecondOctet
}

// Allocator hands out one isolated /24 network per workspace. It keeps no
// state of its own: every allocation re-derives the next free subnet from
// what the runtime reports, so it survives restarts and external changes.
type Allocator struct {
	runtime  ports.ContainerRuntime
	reserved ReservedRange
}

func NewAllocator(runtime ports.ContainerRuntime, reserved ReservedRange) *Allocator {
	return &Allocator{
		runtime:  runtime,
		reserved: reserved,
	}
}

// AllocateOrReuse returns the network with the given name, creating it on the
// next free subnet of the reserved range if it does not exist yet. The
// read-then-create sequence is not synchronized; when two allocations race,
// the runtime rejects the second creation and the caller re-runs the
// allocation (see *errors.DuplicateNetworkError).
func (a *Allocator) AllocateOrReuse(ctx context.Context, name string) (models.NetworkRecord, error) {
	logger := log.GetLogger(ctx).WithFields(logrus.Fields{
		"service": "subnet_allocator",
		"network": name,
	})

	networks, err := a.runtime.ListNetworks(ctx)
	if err != nil {
		return models.NetworkRecord{}, fmt.Errorf("listing networks: %w", err)
	}

	// Find the highest subnet in use inside the reserved range, e.g. with
	// 172.33.1.0 and 172.33.2.0 present the highest is 172.33.2.0.
	var highest netip.Prefix

	for _, existing := range networks {
		if strings.EqualFold(existing.Name, name) {
			logger.Infof("network %s already exists", existing.Name)
			return existing, nil
		}

		prefix, err := ParseSubnet(existing.Subnet)
		if err != nil {
			// Networks without complete IPAM data cannot take part in the scan.
			logger.Debugf("skipping network %s: %v", existing.Name, err)
			continue
		}

		if !a.reserved.Contains(prefix) {
			continue
		}

		if !highest.IsValid() || prefix.Masked().Addr().Compare(highest.Addr()) > 0 {
			highest = prefix.Masked()
		}
	}

	candidate := a.reserved.Base()
	if highest.IsValid() {
		candidate = nextBlock(highest)
	}

	if candidate.Addr().As4()[0] != a.reserved.FirstOctet {
		return models.NetworkRecord{}, errors.ErrAddressSpaceExhausted
	}

	gateway := candidate.Addr().Next()

	logger.Infof("creating network %s with subnet %s", name, candidate.String())

	record, err := a.runtime.CreateNetwork(ctx, ports.CreateNetworkInput{
		Name:    name,
		Subnet:  candidate.String(),
		Gateway: gateway.String(),
	})
	if err != nil {
		return models.NetworkRecord{}, fmt.Errorf("creating network %s: %w", name, err)
	}

	return record, nil
}

// nextBlock returns the /24 one block of addresses above the given subnet.
func nextBlock(prefix netip.Prefix) netip.Prefix {
	base := prefix.Masked().Addr().As4()
	next := binary.BigEndian.Uint32(base[:]) + defaults.NetworkBlockSize

	var octets [4]byte
	binary.BigEndian.PutUint32(octets[:], next)

	return netip.PrefixFrom(netip.AddrFrom4(octets), blockPrefixLen)
}

// ParseSubnet parses a network's IPAM subnet string. An empty or non-IPv4
// subnet is an error; callers scanning existing networks skip such records.
func ParseSubnet(subnet string) (netip.Prefix, error) {
	if subnet == "" {
		return netip.Prefix{}, ierror.New("network has no subnet configured")
	}

	prefix, err := netip.ParsePrefix(subnet)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("parsing subnet %s: %w", subnet, err)
	}

	if !prefix.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("subnet %s is not an IPv4 subnet", subnet)
	}

	return prefix, nil
}
