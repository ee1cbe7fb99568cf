package comm_test

import (
	"bytes"
	"io"
	"log"
	"net"
	"testing"

	"github.com/spmlab/goinst/comm"
)

func tcpEchoServer(t *testing.T) string {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal("could not listen, test aborted")
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			log.Println("new conn accepted")
			go func() { io.Copy(conn, conn) }() // use goroutines to handle multiple connections
		}
	}()
	return ln.Addr().String()
}

func TestSendRecvRoundTripsThroughEcho(t *testing.T) {
	addr := tcpEchoServer(t)
	rd := comm.NewRemoteDevice(addr, false, nil, nil)
	err := rd.Open()
	if err != nil {
		t.Fatal("could not open connection:", err)
	}
	defer rd.Close()
	resp, err := rd.SendRecv([]byte("FREQ?"))
	if err != nil {
		t.Fatal("round trip failed:", err)
	}
	if string(resp) != "FREQ?" {
		t.Errorf("expected terminator-stripped echo, got %q", resp)
	}
}

func TestSendWithoutOpenErrors(t *testing.T) {
	rd := comm.NewRemoteDevice("localhost:1", false, nil, nil)
	err := rd.Send([]byte("ID?"))
	if err != comm.ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestCloseWithoutOpenErrors(t *testing.T) {
	rd := comm.NewRemoteDevice("localhost:1", false, nil, nil)
	if err := rd.Close(); err != comm.ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestSerialWithoutConfErrors(t *testing.T) {
	rd := comm.NewRemoteDevice("/dev/ttyS99", true, nil, nil)
	err := rd.Open()
	if err == nil {
		t.Fatal("expected error opening serial device with no config")
	}
}

// cannedConn is a ReadWriteCloser whose reads drain a preloaded buffer
type cannedConn struct {
	bytes.Buffer
}

func (c *cannedConn) Close() error { return nil }

func TestRecvKeepsBufferedRemainder(t *testing.T) {
	// two terminated lines arrive in one burst; the second must survive
	// the first Recv
	conn := &cannedConn{}
	conn.WriteString("one\rtwo\r")
	rd := comm.NewRemoteDevice("fake", false, nil, nil)
	rd.Conn = conn

	first, err := rd.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != "one" {
		t.Errorf("expected %q, got %q", "one", first)
	}
	second, err := rd.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if string(second) != "two" {
		t.Errorf("expected the buffered remainder %q, got %q", "two", second)
	}
}

func TestCustomTerminators(t *testing.T) {
	addr := tcpEchoServer(t)
	terms := comm.Terminators{Tx: '\n', Rx: '\n'}
	rd := comm.NewRemoteDevice(addr, false, &terms, nil)
	if rd.TxTerminator() != '\n' || rd.RxTerminator() != '\n' {
		t.Fatal("terminators not stored")
	}
	if err := rd.Open(); err != nil {
		t.Fatal(err)
	}
	defer rd.Close()
	resp, err := rd.SendRecv([]byte("SENS?"))
	if err != nil {
		t.Fatal(err)
	}
	if string(resp) != "SENS?" {
		t.Errorf("expected %q, got %q", "SENS?", resp)
	}
}
