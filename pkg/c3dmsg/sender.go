package c3dmsg

// Sender is the narrow interface every controller needs from the network
// layer: the ability to originate a message. Controllers depend on this
// instead of the concrete *network.Network type, so unit tests can supply a
// fake that records sends without wiring a full network.
type Sender interface {
	Send(Message) error
}
