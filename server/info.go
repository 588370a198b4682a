package server

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

var infoSections = []string{"server", "clients", "memory", "stats", "keyspace"}

// info renders the INFO reply. An empty section, "all" or "default" selects
// every section; unknown sections yield an empty reply, as in Redis.
func (s *Server) info(section string) string {
	section = strings.ToLower(section)

	var b strings.Builder
	for _, name := range infoSections {
		if section != "" && section != "all" && section != "default" && section != name {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\r\n")
		}
		s.writeInfoSection(&b, name)
	}
	return b.String()
}

func (s *Server) writeInfoSection(b *strings.Builder, name string) {
	field := func(k string, v interface{}) {
		fmt.Fprintf(b, "%s:%v\r\n", k, v)
	}

	stats := s.storage.Info()

	switch name {
	case "server":
		b.WriteString("# Server\r\n")
		field("redis_version", s.version)
		field("redis_mode", "standalone")
		field("run_id", s.runID)
		field("process_id", os.Getpid())
		field("go_version", runtime.Version())
		field("tcp_port", portOf(s.Addr()))
		field("uptime_in_seconds", int64(time.Since(s.startedAt).Seconds()))
	case "clients":
		b.WriteString("# Clients\r\n")
		field("connected_clients", s.clientCount())
		field("blocked_clients", s.blocked.Load())
	case "memory":
		b.WriteString("# Memory\r\n")
		field("used_memory_dataset", stats["memory_usage"])
		field("number_of_cached_scripts", s.lua.CachedScripts())
	case "stats":
		b.WriteString("# Stats\r\n")
		field("total_connections_received", s.connCount.Load())
		field("total_commands_processed", s.commandCount.Load())
		field("total_error_replies", s.errorCount.Load())
		field("expired_keys_pending", stats["expired_pending"])
	case "keyspace":
		b.WriteString("# Keyspace\r\n")
		if keys, _ := stats["keys"].(int64); keys > 0 {
			fmt.Fprintf(b, "db0:keys=%d,expires=%v,avg_ttl=0\r\n", keys, stats["expires"])
		}
	}
}

func portOf(addr string) string {
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		return addr[i+1:]
	}
	return addr
}
