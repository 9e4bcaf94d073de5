package oscio

import (
	"fmt"
	"net"

	"github.com/hypebeast/go-osc/osc"
)

// Client sends OSC messages to one UDP peer over a single socket.
type Client struct {
	conn net.Conn
}

// Dial connects a UDP socket to addr (host:port).
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("oscio: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Send encodes address and args as one message and sends it.
func (c *Client) Send(address string, args ...any) error {
	return c.SendPacket(osc.NewMessage(address, args...))
}

// SendPacket encodes and sends a message or bundle.
func (c *Client) SendPacket(pkt osc.Packet) error {
	data, err := pkt.MarshalBinary()
	if err != nil {
		return fmt.Errorf("oscio: encode: %w", err)
	}
	return c.Write(data)
}

// Write sends an already encoded packet.
func (c *Client) Write(data []byte) error {
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("oscio: send: %w", err)
	}
	return nil
}

// RemoteAddr returns the peer address.
func (c *Client) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Close releases the socket.
func (c *Client) Close() error { return c.conn.Close() }
