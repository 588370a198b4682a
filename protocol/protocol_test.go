package protocol_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/raniellyferreira/redis-inmemory-kv/protocol"
)

func TestReaderReadNext(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected protocol.Value
	}{
		{"simple string", "+OK\r\n", protocol.SimpleString("OK")},
		{"error", "-ERR unknown command\r\n", protocol.Error("ERR unknown command")},
		{"integer", ":42\r\n", protocol.Integer(42)},
		{"negative integer", ":-7\r\n", protocol.Integer(-7)},
		{"bulk string", "$5\r\nhello\r\n", protocol.BulkString([]byte("hello"))},
		{"binary bulk string", "$4\r\n\x00\r\n\xff\r\n", protocol.BulkString([]byte("\x00\r\n\xff"))},
		{"empty bulk string", "$0\r\n\r\n", protocol.BulkString([]byte{})},
		{"null bulk string", "$-1\r\n", protocol.NullBulkString()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := protocol.NewReader(strings.NewReader(tt.input))
			value, err := reader.ReadNext()
			if err != nil {
				t.Fatalf("ReadNext() error = %v", err)
			}

			if value.Type != tt.expected.Type {
				t.Errorf("Type = %c, want %c", value.Type, tt.expected.Type)
			}
			if !bytes.Equal(value.Data, tt.expected.Data) {
				t.Errorf("Data = %q, want %q", value.Data, tt.expected.Data)
			}
			if value.Integer != tt.expected.Integer {
				t.Errorf("Integer = %d, want %d", value.Integer, tt.expected.Integer)
			}
			if value.IsNull != tt.expected.IsNull {
				t.Errorf("IsNull = %v, want %v", value.IsNull, tt.expected.IsNull)
			}
		})
	}
}

func TestReaderArray(t *testing.T) {
	input := "*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n:5\r\n"

	value, err := protocol.NewReader(strings.NewReader(input)).ReadNext()
	if err != nil {
		t.Fatalf("ReadNext() error = %v", err)
	}
	if value.Type != protocol.TypeArray || len(value.Array) != 3 {
		t.Fatalf("got %v, want 3 element array", value)
	}
	if value.String() != "[SET, key, 5]" {
		t.Errorf("String() = %q", value.String())
	}
}

func TestReaderMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown type", "!oops\r\n"},
		{"missing CR", "+OK\n"},
		{"bad integer", ":12a\r\n"},
		{"bad bulk length", "$x\r\n"},
		{"negative bulk length", "$-2\r\n"},
		{"bulk without CRLF", "$3\r\nabcde"},
		{"array length too large", "*99999999999\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.NewReader(strings.NewReader(tt.input)).ReadNext()
			if !errors.Is(err, protocol.ErrProtocol) {
				t.Errorf("ReadNext() error = %v, want ErrProtocol", err)
			}
		})
	}
}

func TestReaderMaxBulkSize(t *testing.T) {
	reader := protocol.NewReader(strings.NewReader("$10\r\n0123456789\r\n"), protocol.WithMaxBulkSize(4))
	if _, err := reader.ReadNext(); !errors.Is(err, protocol.ErrProtocol) {
		t.Errorf("ReadNext() error = %v, want ErrProtocol", err)
	}
}

func TestReaderTruncated(t *testing.T) {
	_, err := protocol.NewReader(strings.NewReader("$5\r\nhel")).ReadNext()
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadNext() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestReadCommand(t *testing.T) {
	input := "*3\r\n$3\r\nset\r\n$3\r\nkey\r\n$5\r\nvalue\r\n" +
		"\r\n" +
		"rpush  queue a b\r\n" +
		"PING\n"

	reader := protocol.NewReader(strings.NewReader(input))

	expected := []struct {
		name string
		args []string
	}{
		{"SET", []string{"key", "value"}},
		{"RPUSH", []string{"queue", "a", "b"}},
		{"PING", nil},
	}

	for _, want := range expected {
		cmd, err := reader.ReadCommand()
		if err != nil {
			t.Fatalf("ReadCommand() error = %v", err)
		}
		if cmd.Name != want.name {
			t.Errorf("Name = %s, want %s", cmd.Name, want.name)
		}
		if len(cmd.Args) != len(want.args) {
			t.Fatalf("%s: got %d args, want %d", want.name, len(cmd.Args), len(want.args))
		}
		for i, arg := range want.args {
			if cmd.ArgString(i) != arg {
				t.Errorf("%s: Args[%d] = %q, want %q", want.name, i, cmd.Args[i], arg)
			}
		}
	}

	if _, err := reader.ReadCommand(); err != io.EOF {
		t.Errorf("ReadCommand() at end = %v, want io.EOF", err)
	}
}

func TestParseCommand(t *testing.T) {
	cmd, err := protocol.ParseCommand(protocol.Array(
		protocol.BulkString([]byte("brpop")),
		protocol.BulkString([]byte("q")),
		protocol.BulkString([]byte("0")),
	))
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	if cmd.Name != "BRPOP" {
		t.Errorf("Name = %s, want BRPOP", cmd.Name)
	}
	if cmd.String() != "BRPOP q 0" {
		t.Errorf("String() = %q", cmd.String())
	}
	if cmd.ArgString(5) != "" {
		t.Errorf("ArgString(out of range) = %q, want empty", cmd.ArgString(5))
	}

	invalid := []protocol.Value{
		protocol.SimpleString("PING"),
		protocol.Array(),
		protocol.Array(protocol.Integer(1)),
		protocol.Array(protocol.BulkString([]byte("GET")), protocol.NullBulkString()),
	}
	for _, v := range invalid {
		if _, err := protocol.ParseCommand(v); !errors.Is(err, protocol.ErrProtocol) {
			t.Errorf("ParseCommand(%v) error = %v, want ErrProtocol", v, err)
		}
	}
}

func TestWriter(t *testing.T) {
	tests := []struct {
		name     string
		write    func(w *protocol.Writer) error
		expected string
	}{
		{"ok", (*protocol.Writer).WriteOK, "+OK\r\n"},
		{"error", func(w *protocol.Writer) error { return w.WriteError("WRONGTYPE bad") }, "-WRONGTYPE bad\r\n"},
		{"integer", func(w *protocol.Writer) error { return w.WriteInteger(-2) }, ":-2\r\n"},
		{"bulk", func(w *protocol.Writer) error { return w.WriteBulkString([]byte("hello")) }, "$5\r\nhello\r\n"},
		{"empty bulk", func(w *protocol.Writer) error { return w.WriteBulkString(nil) }, "$0\r\n\r\n"},
		{"null bulk", (*protocol.Writer).WriteNullBulkString, "$-1\r\n"},
		{"null array", (*protocol.Writer).WriteNullArray, "*-1\r\n"},
		{"string array", func(w *protocol.Writer) error { return w.WriteStringArray([]string{"q", "v"}) }, "*2\r\n$1\r\nq\r\n$1\r\nv\r\n"},
		{"command", func(w *protocol.Writer) error { return w.WriteCommand("SET", "key", "value") }, "*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n"},
		{"nested value", func(w *protocol.Writer) error {
			return w.WriteValue(protocol.Array(protocol.Integer(1), protocol.Array(protocol.NullBulkString())))
		}, "*2\r\n:1\r\n*1\r\n$-1\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			writer := protocol.NewWriter(&buf)
			if err := tt.write(writer); err != nil {
				t.Fatalf("write error = %v", err)
			}
			if buf.Len() != 0 {
				t.Errorf("data reached the connection before Flush")
			}
			if err := writer.Flush(); err != nil {
				t.Fatalf("Flush() error = %v", err)
			}
			if buf.String() != tt.expected {
				t.Errorf("got %q, want %q", buf.String(), tt.expected)
			}
		})
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := protocol.NewWriter(&buf)
	if err := writer.WriteCommand("QPUSH", "q", "a b", ""); err != nil {
		t.Fatal(err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatal(err)
	}

	cmd, err := protocol.NewReader(&buf).ReadCommand()
	if err != nil {
		t.Fatalf("ReadCommand() error = %v", err)
	}
	if cmd.Name != "QPUSH" || len(cmd.Args) != 3 || cmd.ArgString(1) != "a b" || cmd.ArgString(2) != "" {
		t.Errorf("round trip = %v", cmd)
	}
}

func BenchmarkReadCommand(b *testing.B) {
	input := []byte("*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n")
	r := bytes.NewReader(input)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Reset(input)
		if _, err := protocol.NewReader(r).ReadCommand(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWriteBulkString(b *testing.B) {
	writer := protocol.NewWriter(io.Discard)
	payload := bytes.Repeat([]byte("x"), 1024)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := writer.WriteBulkString(payload); err != nil {
			b.Fatal(err)
		}
	}
	_ = writer.Flush()
}

func TestReaderPeek(t *testing.T) {
	reader := protocol.NewReader(strings.NewReader("+OK\r\n"))
	if err := reader.Peek(); err != nil {
		t.Fatalf("Peek() error = %v", err)
	}

	value, err := reader.ReadNext()
	if err != nil || value.String() != "OK" {
		t.Fatalf("ReadNext() after Peek = %v, %v", value, err)
	}

	if err := reader.Peek(); err != io.EOF {
		t.Errorf("Peek() at end = %v, want io.EOF", err)
	}
}
