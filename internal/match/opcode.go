package match

// OpCode identifies the kind of a realtime match message. MOVE is the only
// inbound code; the rest are broadcast by the server.
type OpCode int64

const (
	OpCodeMove         OpCode = 1
	OpCodeUpdate       OpCode = 2
	OpCodeGameOver     OpCode = 3
	OpCodeOpponentLeft OpCode = 4
)
