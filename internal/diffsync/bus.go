package diffsync

// messageBus holds per-peer mailboxes used to fan Message payloads out to
// every other peer on the same paper. It does not touch SyncCommand
// traffic; that flows through documentView. Mailboxes have no size limit:
// a peer that never drains keeps every message delivered to it.
type messageBus struct {
	mailboxes map[PeerID][]Message
}

func newMessageBus() *messageBus {
	return &messageBus{mailboxes: make(map[PeerID][]Message)}
}

func (b *messageBus) join(peer PeerID) {
	if _, ok := b.mailboxes[peer]; !ok {
		b.mailboxes[peer] = nil
	}
}

func (b *messageBus) part(peer PeerID) {
	delete(b.mailboxes, peer)
}

// deliver fans m out from sender to every other known peer's mailbox,
// prepending it so pending messages drain newest-first.
func (b *messageBus) deliver(sender PeerID, m Message) {
	for peer := range b.mailboxes {
		if peer == sender {
			continue
		}
		b.mailboxes[peer] = append([]Message{m}, b.mailboxes[peer]...)
	}
}

// drain returns peer's pending mailbox, newest-first, and clears it.
func (b *messageBus) drain(peer PeerID) []Message {
	pending := b.mailboxes[peer]
	b.mailboxes[peer] = nil
	return pending
}
