package comms

import (
	"bufio"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// MaxMessageSize bounds a single inbound frame or line.
const MaxMessageSize = 4096

const writeWait = 10 * time.Second

// Conn is a message oriented, bidirectional connection. *websocket.Conn
// satisfies it directly; raw TCP clients are adapted by newLineConn.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

// lineConn frames a stream connection with '\n'. Every line is reported as a
// text message.
type lineConn struct {
	net.Conn
	scanner *bufio.Scanner
}

func newLineConn(conn net.Conn) *lineConn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), MaxMessageSize)
	return &lineConn{Conn: conn, scanner: scanner}
}

func (l *lineConn) ReadMessage() (int, []byte, error) {
	if l.scanner.Scan() {
		line := append([]byte(nil), l.scanner.Bytes()...)
		return websocket.TextMessage, line, nil
	}
	if err := l.scanner.Err(); err != nil {
		return 0, nil, err
	}
	return 0, nil, io.EOF
}

func (l *lineConn) WriteMessage(_ int, data []byte) error {
	frame := make([]byte, 0, len(data)+1)
	frame = append(frame, data...)
	frame = append(frame, '\n')
	_, err := l.Conn.Write(frame)
	return err
}
