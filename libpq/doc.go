package libpq

// Package libpq speaks the client side of the PostgreSQL wire protocol.
//
// 1. Connect dials and drives the startup handshake: protocol 3.0 startup
//    message, authentication (trust or cleartext password), ParameterStatus
//    capture, ReadyForQuery.
//
// 2. ExecParams runs one parameterized command through the extended-query
//    message flow (Parse, Bind, Describe, Execute, Sync) and gathers the
//    response into a ResultHandle. Parameters carry explicit format codes;
//    results are always requested binary.
//
// 3. The exchange is synchronous: one message flight out, read until
//    ReadyForQuery. There is no pipelining, cancellation or timeout.
//
// 4. ReadBuffer/WriteBuffer frame messages (type byte + big-endian length +
//    body). They are exported because the pqtest backend reuses them for the
//    server half of the conversation.
//
// 5. The ResultHandle mirrors the accessor surface of a PGresult: status,
//    error text, tuple/field counts, per-cell value/length/null.
