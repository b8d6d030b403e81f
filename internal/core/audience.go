package core

// audience is the set of clients currently attached to the session.
type audience struct {
	clients map[*Client]struct{}
}

func newAudience() *audience {
	return &audience{clients: make(map[*Client]struct{})}
}

// add inserts a client. Returns true if newly added.
func (a *audience) add(c *Client) bool {
	if _, exists := a.clients[c]; exists {
		return false
	}
	a.clients[c] = struct{}{}
	return true
}

// remove deletes a client. Returns true if removed.
func (a *audience) remove(c *Client) bool {
	if _, exists := a.clients[c]; !exists {
		return false
	}
	delete(a.clients, c)
	return true
}

func (a *audience) has(c *Client) bool {
	_, ok := a.clients[c]
	return ok
}

// broadcast offers ev to every client except skip and returns the clients
// whose queues were full.
func (a *audience) broadcast(ev *Event, skip *Client) []*Client {
	var slow []*Client
	for client := range a.clients {
		if client == skip {
			continue
		}
		if !client.offer(ev) {
			slow = append(slow, client)
		}
	}
	return slow
}

func (a *audience) members() []*Client {
	out := make([]*Client, 0, len(a.clients))
	for c := range a.clients {
		out = append(out, c)
	}
	return out
}

func (a *audience) len() int {
	return len(a.clients)
}
