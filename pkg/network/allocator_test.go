package network_test

import (
	"context"
	ierror "errors"
	"testing"

	"github.com/simongiter/ml-hub/pkg/errors"
	"github.com/simongiter/ml-hub/pkg/models"
	"github.com/simongiter/ml-hub/pkg/network"
	"github.com/simongiter/ml-hub/pkg/ports"

	g "github.com/onsi/gomega"
)

type fakeRuntime struct {
	networks    []models.NetworkRecord
	listErr     error
	createErr   error
	createCalls []ports.CreateNetworkInput
}

func (f *fakeRuntime) ListNetworks(_ context.Context) ([]models.NetworkRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}

	return f.networks, nil
}

func (f *fakeRuntime) CreateNetwork(_ context.Context, input ports.CreateNetworkInput) (models.NetworkRecord, error) {
	f.createCalls = append(f.createCalls, input)

	if f.createErr != nil {
		return models.NetworkRecord{}, f.createErr
	}

	record := models.NetworkRecord{
		ID:      "net-" + input.Name,
		Name:    input.Name,
		Subnet:  input.Subnet,
		Gateway: input.Gateway,
	}
	f.networks = append(f.networks, record)

	return record, nil
}

func (f *fakeRuntime) ConnectEndpoint(_ context.Context, _, _ string) error {
	return nil
}

func (f *fakeRuntime) StartContainer(_ context.Context, input ports.StartContainerInput) (string, error) {
	return "container-" + input.Name, nil
}

func newAllocator(runtime *fakeRuntime) *network.Allocator {
	return network.NewAllocator(runtime, network.DefaultReservedRange())
}

func TestAllocateOrReuse_emptyRange(t *testing.T) {
	g.RegisterTestingT(t)

	runtime := &fakeRuntime{}

	record, err := newAllocator(runtime).AllocateOrReuse(context.Background(), "ws-1")

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(record.Subnet).To(g.Equal("172.33.0.0/24"))
	g.Expect(record.Gateway).To(g.Equal("172.33.0.1"))
	g.Expect(runtime.createCalls).To(g.HaveLen(1))
}

func TestAllocateOrReuse_nextAfterHighest(t *testing.T) {
	g.RegisterTestingT(t)

	runtime := &fakeRuntime{
		networks: []models.NetworkRecord{
			{Name: "ws-a", Subnet: "172.33.0.0/24", Gateway: "172.33.0.1"},
			{Name: "ws-b", Subnet: "172.33.1.0/24", Gateway: "172.33.1.1"},
		},
	}

	record, err := newAllocator(runtime).AllocateOrReuse(context.Background(), "ws-42")

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(record.Subnet).To(g.Equal("172.33.2.0/24"))
	g.Expect(record.Gateway).To(g.Equal("172.33.2.1"))
}

func TestAllocateOrReuse_unorderedScan(t *testing.T) {
	g.RegisterTestingT(t)

	runtime := &fakeRuntime{
		networks: []models.NetworkRecord{
			{Name: "ws-high", Subnet: "172.33.5.0/24"},
			{Name: "ws-low", Subnet: "172.33.2.0/24"},
		},
	}

	record, err := newAllocator(runtime).AllocateOrReuse(context.Background(), "ws-next")

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(record.Subnet).To(g.Equal("172.33.6.0/24"))
}

func TestAllocateOrReuse_ignoresForeignRanges(t *testing.T) {
	g.RegisterTestingT(t)

	// Docker's default pool and private ranges below 172.33 never count.
	runtime := &fakeRuntime{
		networks: []models.NetworkRecord{
			{Name: "bridge", Subnet: "172.17.0.0/16", Gateway: "172.17.0.1"},
			{Name: "lan", Subnet: "10.0.0.0/24", Gateway: "10.0.0.1"},
			{Name: "other", Subnet: "192.168.1.0/24", Gateway: "192.168.1.1"},
		},
	}

	record, err := newAllocator(runtime).AllocateOrReuse(context.Background(), "ws-1")

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(record.Subnet).To(g.Equal("172.33.0.0/24"))
}

func TestAllocateOrReuse_existingNameIsReused(t *testing.T) {
	g.RegisterTestingT(t)

	existing := models.NetworkRecord{
		ID:      "net-ws-42",
		Name:    "WS-42",
		Subnet:  "172.33.7.0/24",
		Gateway: "172.33.7.1",
	}
	runtime := &fakeRuntime{networks: []models.NetworkRecord{existing}}

	record, err := newAllocator(runtime).AllocateOrReuse(context.Background(), "ws-42")

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(record).To(g.Equal(existing))
	g.Expect(runtime.createCalls).To(g.BeEmpty())
}

func TestAllocateOrReuse_idempotent(t *testing.T) {
	g.RegisterTestingT(t)

	runtime := &fakeRuntime{}
	allocator := newAllocator(runtime)

	first, err := allocator.AllocateOrReuse(context.Background(), "ws-1")
	g.Expect(err).NotTo(g.HaveOccurred())

	second, err := allocator.AllocateOrReuse(context.Background(), "ws-1")
	g.Expect(err).NotTo(g.HaveOccurred())

	g.Expect(second).To(g.Equal(first))
	g.Expect(runtime.createCalls).To(g.HaveLen(1))
}

func TestAllocateOrReuse_skipsMalformedRecords(t *testing.T) {
	g.RegisterTestingT(t)

	runtime := &fakeRuntime{
		networks: []models.NetworkRecord{
			{Name: "no-ipam"},
			{Name: "garbage", Subnet: "not-a-subnet"},
			{Name: "ws-a", Subnet: "172.33.3.0/24"},
		},
	}

	record, err := newAllocator(runtime).AllocateOrReuse(context.Background(), "ws-b")

	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(record.Subnet).To(g.Equal("172.33.4.0/24"))
}

func TestAllocateOrReuse_exhaustedRange(t *testing.T) {
	g.RegisterTestingT(t)

	runtime := &fakeRuntime{
		networks: []models.NetworkRecord{
			{Name: "ws-last", Subnet: "172.255.255.0/24"},
		},
	}

	_, err := newAllocator(runtime).AllocateOrReuse(context.Background(), "ws-overflow")

	g.Expect(err).To(g.MatchError(errors.ErrAddressSpaceExhausted))
	g.Expect(runtime.createCalls).To(g.BeEmpty())
}

func TestAllocateOrReuse_listFailurePropagates(t *testing.T) {
	g.RegisterTestingT(t)

	listErr := ierror.New("cannot connect to the docker daemon")
	runtime := &fakeRuntime{listErr: listErr}

	_, err := newAllocator(runtime).AllocateOrReuse(context.Background(), "ws-1")

	g.Expect(err).To(g.MatchError(listErr))
	g.Expect(runtime.createCalls).To(g.BeEmpty())
}

func TestParseSubnet(t *testing.T) {
	g.RegisterTestingT(t)

	prefix, err := network.ParseSubnet("172.33.2.0/24")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(prefix.String()).To(g.Equal("172.33.2.0/24"))

	_, err = network.ParseSubnet("")
	g.Expect(err).To(g.HaveOccurred())

	_, err = network.ParseSubnet("fd00::/64")
	g.Expect(err).To(g.HaveOccurred())
}

func TestReservedRange_contains(t *testing.T) {
	g.RegisterTestingT(t)

	reserved := network.DefaultReservedRange()

	inRange, err := network.ParseSubnet("172.34.0.0/24")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(reserved.Contains(inRange)).To(g.BeTrue())

	belowRange, err := network.ParseSubnet("172.32.0.0/24")
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(reserved.Contains(belowRange)).To(g.BeFalse())
}
