package transport

import (
	"net"
	"strconv"
	"time"
)

// DefaultPort is the IANA registered port for SCPI over raw sockets.
const DefaultPort = 5025

// Endpoint identifies an instrument socket and the timeouts used to talk to it.
//
// A zero WriteTimeout disables the write deadline. ConnectTimeout bounds Dial in
// addition to any deadline of the dial context.
type Endpoint struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
}

// Addr returns the "host:port" form of the endpoint.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Addr()
}
