// Package peer maintains the peer related information such as the set
// of know peers and their status.
package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Set of errors returned when a peer can't be added.
var (
	ErrSelf      = errors.New("peer is this node")
	ErrDuplicate = errors.New("peer is already connected")
)

// maxDials is the number of connection attempts run at the same time.
const maxDials = 8

// =============================================================================

// Peer represents information about a Node in the network.
type Peer struct {
	Host string `json:"host"` // Normalized host:port of the node.
}

// New contructs a new info value from an address. The address is
// normalized first.
func New(addr string) (Peer, error) {
	host, err := Normalize(addr)
	if err != nil {
		return Peer{}, err
	}

	return Peer{Host: host}, nil
}

// Match validates if the specified host matches this node.
func (p Peer) Match(host string) bool {
	return p.Host == host
}

// String implements the fmt.Stringer interface.
func (p Peer) String() string {
	return p.Host
}

// Normalize converts an address into its host:port form. Any scheme and path
// are removed, the host is lower cased and localhost becomes 127.0.0.1.
func Normalize(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if i := strings.Index(addr, "://"); i >= 0 {
		addr = addr[i+3:]
	}
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		addr = addr[:i]
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("address %q: %w", addr, err)
	}

	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return "", fmt.Errorf("address %q: invalid port", addr)
	}

	host = strings.ToLower(host)
	switch host {
	case "", "localhost":
		host = "127.0.0.1"
	}

	return net.JoinHostPort(host, port), nil
}

// =============================================================================

// PeerStatus represents information about the status
// of any given peer.
type PeerStatus struct {
	NodeID          string `json:"node_id"`
	LatestBlockHash string `json:"latest_block_hash"`
	Length          int    `json:"length"`
	KnownPeers      []Peer `json:"known_peers"`
}

// =============================================================================

// DialFunc establishes a connection to the specified host.
type DialFunc func(ctx context.Context, host string) error

// ConnectResult reports the outcome of connecting to a set of candidates.
type ConnectResult struct {
	Connected []Peer
	Skipped   []string         // Already connected.
	Failed    map[string]error // Keyed by the candidate address.
}

// PeerSet represents the data representation to maintain a set of known peers.
// The set never contains this node itself.
type PeerSet struct {
	mu         sync.RWMutex
	set        map[Peer]struct{}
	listenPort string
	localHosts map[string]bool
}

// NewPeerSet constructs a new info set to manage node peer information. The
// listen port and local hosts identify this node. Loopback and unspecified
// addresses are always treated as local.
func NewPeerSet(listenPort int, localHosts ...string) *PeerSet {
	local := map[string]bool{
		"127.0.0.1": true,
		"::1":       true,
		"0.0.0.0":   true,
		"::":        true,
	}
	for _, host := range localHosts {
		local[strings.ToLower(host)] = true
	}

	return &PeerSet{
		set:        make(map[Peer]struct{}),
		listenPort: strconv.Itoa(listenPort),
		localHosts: local,
	}
}

// IsSelf reports whether the normalized host is this node.
func (ps *PeerSet) IsSelf(host string) bool {
	h, port, err := net.SplitHostPort(host)
	if err != nil {
		return false
	}

	return port == ps.listenPort && ps.localHosts[h]
}

// Add adds a new node to the set. Adding this node or a node already in
// the set returns an error and leaves the set unchanged.
func (ps *PeerSet) Add(peer Peer) error {
	if ps.IsSelf(peer.Host) {
		return ErrSelf
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[peer]; exists {
		return ErrDuplicate
	}
	ps.set[peer] = struct{}{}

	return nil
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Contains reports whether the peer is in the set.
func (ps *PeerSet) Contains(peer Peer) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	_, exists := ps.set[peer]
	return exists
}

// Len returns the number of peers in the set.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// Copy returns a list of the known peers sorted by host.
func (ps *PeerSet) Copy() []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]Peer, 0, len(ps.set))
	for peer := range ps.set {
		peers = append(peers, peer)
	}

	sort.Slice(peers, func(i, j int) bool {
		return peers[i].Host < peers[j].Host
	})

	return peers
}

// Connect dials every candidate address that is not this node and not
// already in the set. A failure for one candidate doesn't stop the
// attempts to the others. Successfully dialed peers are added to the set.
func (ps *PeerSet) Connect(ctx context.Context, addrs []string, dial DialFunc) ConnectResult {
	result := ConnectResult{
		Failed: make(map[string]error),
	}

	var candidates []Peer
	seen := make(map[Peer]bool)

	for _, addr := range addrs {
		peer, err := New(addr)
		if err != nil {
			result.Failed[addr] = err
			continue
		}

		switch {
		case ps.IsSelf(peer.Host):
			result.Failed[addr] = ErrSelf
		case seen[peer] || ps.Contains(peer):
			result.Skipped = append(result.Skipped, peer.Host)
		default:
			seen[peer] = true
			candidates = append(candidates, peer)
		}
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(maxDials)

	for _, peer := range candidates {
		g.Go(func() error {
			err := dial(ctx, peer.Host)
			if err == nil {
				err = ps.Add(peer)
			}

			mu.Lock()
			defer mu.Unlock()

			switch {
			case errors.Is(err, ErrDuplicate):
				result.Skipped = append(result.Skipped, peer.Host)
			case err != nil:
				result.Failed[peer.Host] = err
			default:
				result.Connected = append(result.Connected, peer)
			}

			// Never fail the group so every candidate is attempted.
			return nil
		})
	}

	g.Wait()

	sort.Slice(result.Connected, func(i, j int) bool {
		return result.Connected[i].Host < result.Connected[j].Host
	})

	return result
}

// =============================================================================

// LocalHosts returns the addresses of the network interfaces of this
// machine.
func LocalHosts() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	hosts := []string{"localhost"}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok {
			hosts = append(hosts, ipnet.IP.String())
		}
	}

	return hosts, nil
}
