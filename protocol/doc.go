// Package protocol implements the subset of the Redis Serialization Protocol
// (RESP2) spoken by the rediskv server.
//
// A server loop reads commands and buffers replies:
//
//	reader := protocol.NewReader(conn)
//	writer := protocol.NewWriter(conn)
//	for {
//		cmd, err := reader.ReadCommand()
//		if err != nil {
//			break
//		}
//		// dispatch cmd.Name with cmd.Args
//		writer.WriteOK()
//		writer.Flush()
//	}
//
// Malformed input is reported with errors wrapping ErrProtocol.
package protocol
