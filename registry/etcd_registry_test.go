package registry

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

const testChannel = "com.github.dart_lang.jnigen/benchmark"

// etcdEndpoints returns the cluster named by METHOD_BRIDGE_ETCD, skipping the test otherwise.
func etcdEndpoints(t *testing.T) []string {
	t.Helper()
	v := os.Getenv("METHOD_BRIDGE_ETCD")
	if v == "" {
		t.Skip("METHOD_BRIDGE_ETCD not set; skipping etcd test")
	}
	return strings.Split(v, ",")
}

func TestRegisterAndDiscover(t *testing.T) {
	reg, err := NewEtcdRegistry(etcdEndpoints(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ep1 := Endpoint{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0"}
	ep2 := Endpoint{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0"}

	if err := reg.Register(ctx, testChannel, ep1, 10); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(ctx, testChannel, ep2, 10); err != nil {
		t.Fatal(err)
	}

	endpoints, err := reg.Discover(ctx, testChannel)
	if err != nil {
		t.Fatal(err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("expect 2 endpoints, got %d", len(endpoints))
	}

	if err := reg.Deregister(ctx, testChannel, ep1.Addr); err != nil {
		t.Fatal(err)
	}

	endpoints, err = reg.Discover(ctx, testChannel)
	if err != nil {
		t.Fatal(err)
	}
	if len(endpoints) != 1 || endpoints[0].Addr != ep2.Addr {
		t.Fatalf("expect only %s after deregister, got %+v", ep2.Addr, endpoints)
	}

	reg.Deregister(ctx, testChannel, ep2.Addr)
}

func TestChannelPrefixIsolation(t *testing.T) {
	a := channelPrefix("bench")
	b := endpointKey("bench/extra", "127.0.0.1:1")
	if strings.HasPrefix(b, a) {
		t.Fatalf("key %s of another channel falls under prefix %s", b, a)
	}
}
