package netio_test

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/shieldgw/shield/internal/netio"
)

func echoCreator(conn net.Conn) *netio.Session {
	s := netio.NewSession(conn, nil)
	s.SetReadCallback(func(data []byte) {
		echoed := make([]byte, len(data))
		copy(echoed, data)
		s.Send(echoed)
	})
	return s
}

func TestMasterReactorEchoesOverTCP(t *testing.T) {
	m := netio.NewMasterReactor("127.0.0.1", 0, 2, echoCreator, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	conn, err := net.Dial("tcp", m.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make([]byte, 4)
	if _, err := bufio.NewReader(conn).Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("got %q, want %q", buf, "ping")
	}
}

func TestMasterReactorRoundRobinDistribution(t *testing.T) {
	const numSlaves = 3
	const numConns = 7

	m := netio.NewMasterReactor("127.0.0.1", 0, numSlaves, echoCreator, nil)
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	var conns []net.Conn
	for i := 0; i < numConns; i++ {
		conn, err := net.Dial("tcp", m.Addr().String())
		if err != nil {
			t.Fatalf("Dial %d: %v", i, err)
		}
		conns = append(conns, conn)
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	// Give the accept loop time to dispatch every connection before
	// inspecting the slave assignment counts.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		total := uint64(0)
		for i := 0; i < numSlaves; i++ {
			total += slaveAssigned(m, i)
		}
		if total == numConns {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// K=7 connections over S=3 slaves: slave i receives ceil((K-i)/S).
	want := []uint64{3, 2, 2}
	for i, w := range want {
		got := slaveAssigned(m, i)
		if got != w {
			t.Errorf("slave %d assigned = %d, want %d", i, got, w)
		}
	}
}

func slaveAssigned(m *netio.MasterReactor, i int) uint64 {
	return m.SlaveAssigned(i)
}
