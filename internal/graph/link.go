package graph

import (
	"fmt"
	"slices"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/registry"
)

func (c *Cache) connectorInfo(id entity.ID) *registry.ConnectorInfo {
	conn, ok := c.connector(id)
	if !ok {
		return nil
	}
	info := &registry.ConnectorInfo{ID: conn.id, Kind: conn.Kind, Peers: slices.Clone(conn.Peers)}
	if owner, ok := c.node(conn.Owner); ok {
		info.Owner = owner.info()
	}
	return info
}

// Connect links two connectors as mutual peers. An output gains a condition
// value for its new peer carrying the parameter of its previous last value.
func (c *Cache) Connect(a, b entity.ID) error {
	if err := c.reg.CheckLink(c.connectorInfo(a), c.connectorInfo(b)); err != nil {
		return fmt.Errorf("connect %s to %s: %w", a, b, err)
	}
	ca, _ := c.connector(a)
	cb, _ := c.connector(b)
	c.link(ca, cb)
	c.link(cb, ca)

	na, _ := c.node(ca.Owner)
	nb, _ := c.node(cb.Owner)
	c.relayout(na, true)
	c.relayout(nb, true)
	return nil
}

func (c *Cache) link(from, to *Connector) {
	from.Peers = append(from.Peers, to.id)
	if from.IsOutput() {
		var param Value
		if n := len(from.Values); n > 0 {
			param = from.Values[n-1].Param
		}
		from.Values = append(from.Values, ConditionValue{Peer: to.id, Equality: Equal, Param: param})
	}
	c.touch(from.id)
}

// Disconnect removes the mutual link between two connectors.
func (c *Cache) Disconnect(a, b entity.ID) error {
	ca, ok := c.connector(a)
	if !ok {
		return missing("connector", a)
	}
	cb, ok := c.connector(b)
	if !ok {
		return missing("connector", b)
	}
	if !ca.hasPeer(b) && !cb.hasPeer(a) {
		return invalid("connectors %s and %s are not linked", a, b)
	}
	c.unlink(ca, b)
	c.unlink(cb, a)

	for _, conn := range []*Connector{ca, cb} {
		if n, ok := c.node(conn.Owner); ok {
			c.relayout(n, true)
		}
	}
	return nil
}

// unlink drops peer from conn's peers and condition values.
func (c *Cache) unlink(conn *Connector, peer entity.ID) {
	before := len(conn.Peers)
	conn.Peers = slices.DeleteFunc(conn.Peers, func(id entity.ID) bool { return id == peer })
	conn.Values = slices.DeleteFunc(conn.Values, func(v ConditionValue) bool { return v.Peer == peer })
	if len(conn.Peers) != before {
		c.touch(conn.id)
	}
}

// syncValues makes an output's condition values match its peers one to one
// and in peer order, keeping existing values by peer.
func syncValues(conn *Connector) bool {
	if !conn.IsOutput() {
		changed := len(conn.Values) > 0
		conn.Values = nil
		return changed
	}
	if len(conn.Values) == len(conn.Peers) {
		inOrder := true
		for i, v := range conn.Values {
			if v.Peer != conn.Peers[i] {
				inOrder = false
				break
			}
		}
		if inOrder {
			return false
		}
	}
	values := make([]ConditionValue, 0, len(conn.Peers))
	var last Value
	for _, peer := range conn.Peers {
		if i := conn.valueIndex(peer); i >= 0 {
			values = append(values, conn.Values[i])
			last = conn.Values[i].Param
			continue
		}
		values = append(values, ConditionValue{Peer: peer, Equality: Equal, Param: last})
	}
	conn.Values = values
	return true
}
