package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Writer encodes RESP2 replies into a buffered stream.
// Nothing reaches the underlying writer until Flush is called.
type Writer struct {
	bw  *bufio.Writer
	num []byte
}

// NewWriter creates a RESP writer on top of w
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		bw:  bufio.NewWriter(w),
		num: make([]byte, 0, 20),
	}
}

// WriteValue writes any Value, recursing into arrays
func (w *Writer) WriteValue(v Value) error {
	switch v.Type {
	case TypeSimpleString:
		return w.writeLine(byte(TypeSimpleString), v.Data)
	case TypeError:
		return w.writeLine(byte(TypeError), v.Data)
	case TypeInteger:
		return w.WriteInteger(v.Integer)
	case TypeBulkString:
		if v.IsNull {
			return w.WriteNullBulkString()
		}
		return w.WriteBulkString(v.Data)
	case TypeArray:
		if v.IsNull {
			return w.WriteNullArray()
		}
		if err := w.writeHeader(byte(TypeArray), int64(len(v.Array))); err != nil {
			return err
		}
		for _, item := range v.Array {
			if err := w.WriteValue(item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported value type: %c", v.Type)
	}
}

// WriteSimpleString writes +s
func (w *Writer) WriteSimpleString(s string) error {
	return w.writeLine(byte(TypeSimpleString), []byte(s))
}

// WriteOK writes +OK
func (w *Writer) WriteOK() error {
	return w.WriteSimpleString("OK")
}

// WriteError writes -msg. msg should start with an error code such as ERR.
func (w *Writer) WriteError(msg string) error {
	return w.writeLine(byte(TypeError), []byte(msg))
}

// WriteInteger writes :n
func (w *Writer) WriteInteger(n int64) error {
	return w.writeHeader(byte(TypeInteger), n)
}

// WriteBulkString writes a length-prefixed binary string
func (w *Writer) WriteBulkString(data []byte) error {
	if err := w.writeHeader(byte(TypeBulkString), int64(len(data))); err != nil {
		return err
	}
	if _, err := w.bw.Write(data); err != nil {
		return err
	}
	_, err := w.bw.WriteString(CRLF)
	return err
}

// WriteNullBulkString writes $-1, the RESP2 nil reply
func (w *Writer) WriteNullBulkString() error {
	return w.writeHeader(byte(TypeBulkString), -1)
}

// WriteNullArray writes *-1, the nil reply of timed out blocking commands
func (w *Writer) WriteNullArray() error {
	return w.writeHeader(byte(TypeArray), -1)
}

// WriteArrayHeader starts an array of n elements. The caller writes the elements.
func (w *Writer) WriteArrayHeader(n int) error {
	return w.writeHeader(byte(TypeArray), int64(n))
}

// WriteStringArray writes an array of bulk strings
func (w *Writer) WriteStringArray(items []string) error {
	if err := w.WriteArrayHeader(len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := w.WriteBulkString([]byte(item)); err != nil {
			return err
		}
	}
	return nil
}

// WriteCommand writes a client request as an array of bulk strings
func (w *Writer) WriteCommand(name string, args ...string) error {
	return w.WriteStringArray(append([]string{name}, args...))
}

// Flush sends buffered replies to the underlying writer
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Buffered returns the number of bytes waiting for Flush
func (w *Writer) Buffered() int {
	return w.bw.Buffered()
}

func (w *Writer) writeHeader(prefix byte, n int64) error {
	w.num = strconv.AppendInt(w.num[:0], n, 10)
	return w.writeLine(prefix, w.num)
}

func (w *Writer) writeLine(prefix byte, body []byte) error {
	if err := w.bw.WriteByte(prefix); err != nil {
		return err
	}
	if _, err := w.bw.Write(body); err != nil {
		return err
	}
	_, err := w.bw.WriteString(CRLF)
	return err
}
