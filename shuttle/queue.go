package shuttle

// CommandSender delivers one command string to the CNC backend.
type CommandSender interface {
	Send(cmd string) error
}

// CommandQueue buffers pending command strings between cycles. Queued
// commands are operator intentions, not a durable log: every
// superseding action clears the queue before pushing its own commands,
// and commands are never reordered.
type CommandQueue struct {
	cmds []string
}

func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// Push appends cmd, truncated to MaxCmdLength bytes.
func (q *CommandQueue) Push(cmd string) {
	if len(cmd) > MaxCmdLength {
		cmd = cmd[:MaxCmdLength]
	}
	q.cmds = append(q.cmds, cmd)
}

// Clear discards all pending commands. Safe on an empty queue.
func (q *CommandQueue) Clear() {
	q.cmds = q.cmds[:0]
}

// Size returns the number of pending commands.
func (q *CommandQueue) Size() int {
	return len(q.cmds)
}

// FlushTo sends all queued commands to sender in FIFO order and returns
// how many were accepted. The queue is emptied either way: once a send
// fails the whole session is torn down, so replaying stale motion on a
// fresh connection would be worse than dropping it.
func (q *CommandQueue) FlushTo(sender CommandSender) (int, error) {
	sent := 0
	for _, cmd := range q.cmds {
		if err := sender.Send(cmd); err != nil {
			q.cmds = q.cmds[:0]
			return sent, err
		}
		sent++
	}
	q.cmds = q.cmds[:0]
	return sent, nil
}
