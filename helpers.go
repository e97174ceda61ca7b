package broadcast

import (
	"context"
	"net"
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
)

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

func localAddresses() (map[string]struct{}, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	local := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			local[ipNet.IP.String()] = struct{}{}
		}
	}
	return local, nil
}

// lookupTimeout bounds reverse lookup done on the receive path.
const lookupTimeout = 200 * time.Millisecond

// hostnames caches reverse lookups. It is used by the receiver goroutine only.
type hostnames struct {
	resolve    bool
	timeout    time.Duration
	lookupAddr func(ctx context.Context, address string) ([]string, error)
	cache      map[string]string
}

func newHostnames(resolve bool) *hostnames {
	return &hostnames{
		resolve:    resolve,
		timeout:    lookupTimeout,
		lookupAddr: net.DefaultResolver.LookupAddr,
		cache:      map[string]string{},
	}
}

// Lookup returns the hostname of the address, or the address itself if it can't be resolved in time.
// Failed lookups are cached too.
func (h *hostnames) Lookup(ctx context.Context, address string) string {
	if !h.resolve {
		return address
	}
	if name, exists := h.cache[address]; exists {
		return name
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	name := address
	if names, err := h.lookupAddr(ctx, address); err == nil && len(names) > 0 {
		name = strings.TrimSuffix(names[0], ".")
	}
	h.cache[address] = name
	return name
}
