// Package common provides the data structures shared by the rpc client and
// server: the wire protocol and the configuration of both sides.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. Which fields are
//     set depends on the MessageType. Factory functions create the request and
//     response of every operation. Failed responses carry the storage.RetCode
//     of the error in Code, so a quota error of a remote backend is still a
//     RetCQuotaExceeded on the client (see Message.Error).
//
//   - MessageType: The operations of a storage (get, set, remove, clear, key,
//     length) plus watch, which polls the change log of an area.
//
//   - Change: One entry of an area's change log, the wire form of a
//     storage.Notification. Clear marks a store-wide clear.
//
//   - AreaConfig / ParseAreas: The storages a daemon serves. An area is
//     addressed by a numeric id and has a kind and an engine:
//
//     1=local:sqlite:data/local.db,2=session:memory
//
//   - ServerConfig / ClientConfig: Configuration of the daemon and of remote
//     environments, with String methods for startup logging.
package common
