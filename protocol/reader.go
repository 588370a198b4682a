package protocol

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
)

const (
	// CRLF terminates every RESP line
	CRLF = "\r\n"

	// DefaultMaxBulkSize matches Redis' default proto-max-bulk-len
	DefaultMaxBulkSize = 512 * 1024 * 1024

	maxArraySize = 1024 * 1024
)

var crlf = []byte(CRLF)

// Reader decodes RESP2 values from a buffered stream
type Reader struct {
	br          *bufio.Reader
	maxBulkSize int64
}

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithMaxBulkSize limits the size of a single bulk string
func WithMaxBulkSize(n int64) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.maxBulkSize = n
		}
	}
}

// NewReader creates a RESP reader on top of r
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	reader := &Reader{
		br:          bufio.NewReader(r),
		maxBulkSize: DefaultMaxBulkSize,
	}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// ReadCommand reads the next client command. Besides RESP arrays it accepts
// inline commands ("PING\r\n"), the form used by telnet and redis-cli --pipe.
// Blank inline lines are skipped.
func (r *Reader) ReadCommand() (*Command, error) {
	for {
		b, err := r.br.Peek(1)
		if err != nil {
			return nil, err
		}

		if ValueType(b[0]) == TypeArray {
			v, err := r.ReadNext()
			if err != nil {
				return nil, err
			}
			return ParseCommand(v)
		}

		cmd, err := r.readInline()
		if err != nil {
			return nil, err
		}
		if cmd != nil {
			return cmd, nil
		}
	}
}

// readInline reads one whitespace separated command line, bounded by the
// reader's buffer size. It returns a nil command for an empty line.
func (r *Reader) readInline() (*Command, error) {
	line, err := r.br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		return nil, fmt.Errorf("%w: inline command too long", ErrProtocol)
	}
	if err != nil {
		return nil, err
	}

	fields := bytes.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}

	items := make([]Value, len(fields))
	for i, f := range fields {
		items[i] = BulkString(append([]byte(nil), f...))
	}
	return ParseCommand(Array(items...))
}

// Peek blocks until at least one byte can be read, without consuming it.
// It reports the connection error, such as io.EOF, if none arrives.
func (r *Reader) Peek() error {
	_, err := r.br.Peek(1)
	return err
}

// ReadNext reads the next RESP value from the stream
func (r *Reader) ReadNext() (Value, error) {
	prefix, err := r.br.ReadByte()
	if err != nil {
		return Value{}, err
	}

	switch ValueType(prefix) {
	case TypeSimpleString, TypeError:
		line, err := r.readLine()
		if err != nil {
			return Value{}, err
		}
		return Value{Type: ValueType(prefix), Data: line}, nil
	case TypeInteger:
		line, err := r.readLine()
		if err != nil {
			return Value{}, err
		}
		n, err := parseInt64(line)
		if err != nil {
			return Value{}, fmt.Errorf("%w: invalid integer %q", ErrProtocol, line)
		}
		return Integer(n), nil
	case TypeBulkString:
		return r.readBulkString()
	case TypeArray:
		return r.readArray()
	default:
		return Value{}, fmt.Errorf("%w: unknown RESP type 0x%02x", ErrProtocol, prefix)
	}
}

func (r *Reader) readBulkString() (Value, error) {
	n, err := r.readLength("bulk string", r.maxBulkSize)
	if err != nil {
		return Value{}, err
	}
	if n < 0 {
		return NullBulkString(), nil
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r.br, data); err != nil {
		return Value{}, err
	}
	if err := r.expectCRLF(); err != nil {
		return Value{}, err
	}
	return BulkString(data), nil
}

func (r *Reader) readArray() (Value, error) {
	n, err := r.readLength("array", maxArraySize)
	if err != nil {
		return Value{}, err
	}
	if n < 0 {
		return Value{Type: TypeArray, IsNull: true}, nil
	}

	items := make([]Value, n)
	for i := range items {
		if items[i], err = r.ReadNext(); err != nil {
			return Value{}, err
		}
	}
	return Array(items...), nil
}

// readLength reads a length header. -1 is returned for null values.
func (r *Reader) readLength(kind string, limit int64) (int64, error) {
	line, err := r.readLine()
	if err != nil {
		return 0, err
	}

	n, err := parseInt64(line)
	if err != nil || n < -1 || n > limit {
		return 0, fmt.Errorf("%w: invalid %s length %q", ErrProtocol, kind, line)
	}
	return n, nil
}

// readLine reads a CRLF terminated line and returns it without the terminator
func (r *Reader) readLine() ([]byte, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	if !bytes.HasSuffix(line, crlf) {
		return nil, fmt.Errorf("%w: line not terminated by CRLF", ErrProtocol)
	}
	return line[:len(line)-2], nil
}

func (r *Reader) expectCRLF() error {
	var buf [2]byte
	if _, err := io.ReadFull(r.br, buf[:]); err != nil {
		return err
	}
	if !bytes.Equal(buf[:], crlf) {
		return fmt.Errorf("%w: expected CRLF after bulk data", ErrProtocol)
	}
	return nil
}

// parseInt64 parses a decimal integer without allocating
func parseInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}

	neg := false
	i := 0
	switch b[0] {
	case '-':
		neg, i = true, 1
	case '+':
		i = 1
	}
	if i >= len(b) {
		return 0, strconv.ErrSyntax
	}

	var n int64
	for ; i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			return 0, strconv.ErrSyntax
		}
		if n > (1<<63-1)/10 {
			return 0, strconv.ErrRange
		}
		n = n*10 + int64(c-'0')
	}

	if neg {
		return -n, nil
	}
	return n, nil
}
