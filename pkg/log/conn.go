package log

import (
	"fmt"
	"net"
	"os"
	"sync"
)

// loggedConn wraps a net.Conn and appends all traffic to a shared dump file.
// Each chunk is preceded by a header line naming the direction and the peer.
type loggedConn struct {
	net.Conn
	dump *Dump
}

func (lc *loggedConn) Read(b []byte) (int, error) {
	n, err := lc.Conn.Read(b)
	if n > 0 {
		if werr := lc.dump.write("<", lc.Conn.RemoteAddr(), b[:n]); werr != nil {
			return n, fmt.Errorf("dumping read: %w", werr)
		}
	}
	return n, err
}

func (lc *loggedConn) Write(b []byte) (int, error) {
	n, err := lc.Conn.Write(b)
	if n > 0 {
		if werr := lc.dump.write(">", lc.Conn.RemoteAddr(), b[:n]); werr != nil {
			return n, fmt.Errorf("dumping write: %w", werr)
		}
	}
	return n, err
}

// Dump is an append-only traffic log shared by many connections.
type Dump struct {
	mu   sync.Mutex
	file *os.File
}

// OpenDump opens (or creates) the dump file at path for appending.
func OpenDump(path string) (*Dump, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("os.OpenFile(%s): %w", path, err)
	}
	return &Dump{file: f}, nil
}

// Wrap returns conn with its traffic recorded in the dump.
// A nil dump returns conn unchanged.
func (d *Dump) Wrap(conn net.Conn) net.Conn {
	if d == nil {
		return conn
	}
	return &loggedConn{Conn: conn, dump: d}
}

// Close closes the dump file.
func (d *Dump) Close() error {
	if d == nil {
		return nil
	}
	return d.file.Close()
}

func (d *Dump) write(dir string, peer net.Addr, b []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := fmt.Fprintf(d.file, "%s %s %d\n", dir, peer, len(b)); err != nil {
		return err
	}
	if _, err := d.file.Write(b); err != nil {
		return err
	}
	_, err := d.file.Write([]byte{'\n'})
	return err
}
