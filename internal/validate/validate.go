// Package validate reports structural problems in a dialogue graph without
// changing it.
package validate

import (
	"fmt"
	"slices"

	"dialoguecraft/internal/entity"
	"dialoguecraft/internal/graph"
	"dialoguecraft/internal/registry"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeStartCount        = "start_count"
	codeStartConnectors   = "start_connectors"
	codeDanglingPeer      = "dangling_peer"
	codeAsymmetricPeer    = "asymmetric_peer"
	codeConditionValues   = "condition_values"
	codeDuplicateName     = "duplicate_name"
	codeReservedSlot      = "reserved_slot"
	codeOptionOwnership   = "option_ownership"
	codeOrphanedConnector = "orphaned_connector"
	codeNoConnectors      = "no_connectors"
	codeUnreachableMain   = "unreachable_main"
)

type Issue struct {
	Severity Severity
	Code     string
	Message  string
	Entity   entity.ID
	Name     string
}

type Report struct {
	Issues []Issue
}

func (r *Report) Errors() []Issue {
	return r.bySeverity(SeverityError)
}

func (r *Report) Warnings() []Issue {
	return r.bySeverity(SeverityWarn)
}

func (r *Report) HasErrors() bool {
	return slices.ContainsFunc(r.Issues, func(i Issue) bool { return i.Severity == SeverityError })
}

func (r *Report) bySeverity(s Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == s {
			out = append(out, issue)
		}
	}
	return out
}

// Graph is the read surface the checks need. *graph.Cache implements it.
type Graph interface {
	Nodes() []entity.ID
	AllNodes() []entity.ID
	Options(mainID entity.ID) []entity.ID
	Connectors(nodeID entity.ID) []entity.ID
	Actors() []entity.ID
	Conditions() []entity.ID
	DefaultActor() entity.ID
	NoneCondition() entity.ID
	Node(id entity.ID) (*graph.Node, bool)
	Connector(id entity.ID) (*graph.Connector, bool)
	Actor(id entity.ID) (*graph.Actor, bool)
	Condition(id entity.ID) (*graph.Condition, bool)
}

var _ Graph = (*graph.Cache)(nil)

func Run(g Graph) *Report {
	issues := make([]Issue, 0)
	issues = append(issues, checkStart(g)...)
	issues = append(issues, checkReserved(g)...)
	issues = append(issues, checkNames(g)...)
	issues = append(issues, checkOptions(g)...)
	issues = append(issues, checkConnectors(g)...)
	issues = append(issues, checkReachability(g)...)
	return &Report{Issues: issues}
}

func checkStart(g Graph) []Issue {
	var starts []entity.ID
	for _, id := range g.Nodes() {
		if n, ok := g.Node(id); ok && n.Kind == registry.NodeStart {
			starts = append(starts, id)
		}
	}
	if len(starts) != 1 {
		return []Issue{{
			Severity: SeverityError,
			Code:     codeStartCount,
			Message:  fmt.Sprintf("graph has %d start nodes, want 1", len(starts)),
		}}
	}

	start := starts[0]
	conns := g.Connectors(start)
	if len(conns) == 1 {
		if c, ok := g.Connector(conns[0]); ok && c.IsOutput() {
			return nil
		}
	}
	return []Issue{{
		Severity: SeverityError,
		Code:     codeStartConnectors,
		Message:  fmt.Sprintf("start node has %d connectors, want a single output", len(conns)),
		Entity:   start,
		Name:     graph.StartNodeName,
	}}
}

func checkReserved(g Graph) []Issue {
	var issues []Issue
	if _, ok := g.Actor(g.DefaultActor()); !ok {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     codeReservedSlot,
			Message:  "default actor is missing",
			Entity:   g.DefaultActor(),
		})
	}
	if cond, ok := g.Condition(g.NoneCondition()); !ok || cond.Type != graph.ValueNone {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     codeReservedSlot,
			Message:  "none condition is missing or typed",
			Entity:   g.NoneCondition(),
		})
	}
	return issues
}

// checkNames reports repeated names within each set that owns them.
func checkNames(g Graph) []Issue {
	var issues []Issue
	dupes := func(set string, ids []entity.ID, name func(entity.ID) (string, bool)) {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			n, ok := name(id)
			if !ok {
				continue
			}
			if _, dup := seen[n]; dup {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Code:     codeDuplicateName,
					Message:  fmt.Sprintf("name %q repeats in %s", n, set),
					Entity:   id,
					Name:     n,
				})
				continue
			}
			seen[n] = struct{}{}
		}
	}
	nodeName := func(id entity.ID) (string, bool) {
		n, ok := g.Node(id)
		if !ok {
			return "", false
		}
		return n.Name, true
	}
	connName := func(id entity.ID) (string, bool) {
		c, ok := g.Connector(id)
		if !ok {
			return "", false
		}
		return c.Name, true
	}

	dupes("nodes", g.Nodes(), nodeName)
	dupes("actors", g.Actors(), func(id entity.ID) (string, bool) {
		a, ok := g.Actor(id)
		if !ok {
			return "", false
		}
		return a.Name, true
	})
	dupes("conditions", g.Conditions(), func(id entity.ID) (string, bool) {
		c, ok := g.Condition(id)
		if !ok {
			return "", false
		}
		return c.Name, true
	})
	for _, id := range g.AllNodes() {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		dupes(n.Name+" connectors", g.Connectors(id), connName)
		if n.Kind == registry.NodeMain {
			dupes(n.Name+" options", g.Options(id), nodeName)
		}
	}
	return issues
}

func checkOptions(g Graph) []Issue {
	var issues []Issue
	for _, id := range g.Nodes() {
		n, ok := g.Node(id)
		if ok && n.Kind == registry.NodeOption && n.Main != entity.Nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeOptionOwnership,
				Message:  fmt.Sprintf("option points at main %s but is listed at the top level", n.Main),
				Entity:   id,
				Name:     n.Name,
			})
		}
		if !ok || n.Kind != registry.NodeMain {
			continue
		}
		for _, optID := range g.Options(id) {
			opt, ok := g.Node(optID)
			if ok && opt.Main == id {
				continue
			}
			issue := Issue{
				Severity: SeverityError,
				Code:     codeOptionOwnership,
				Message:  fmt.Sprintf("listed as an option of %q but does not point back", n.Name),
				Entity:   optID,
			}
			if ok {
				issue.Name = opt.Name
			}
			issues = append(issues, issue)
		}
	}
	return issues
}

// checkConnectors covers ownership, peer links and condition values.
func checkConnectors(g Graph) []Issue {
	var issues []Issue
	for _, nodeID := range g.AllNodes() {
		n, ok := g.Node(nodeID)
		if !ok {
			continue
		}
		conns := g.Connectors(nodeID)
		if len(conns) == 0 && n.Kind != registry.NodeStart {
			issues = append(issues, Issue{
				Severity: SeverityWarn,
				Code:     codeNoConnectors,
				Message:  "node has no connectors",
				Entity:   nodeID,
				Name:     n.Name,
			})
		}
		for _, id := range conns {
			c, ok := g.Connector(id)
			if !ok {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Code:     codeOrphanedConnector,
					Message:  fmt.Sprintf("node %q lists missing connector %s", n.Name, id),
					Entity:   id,
				})
				continue
			}
			if c.Owner != nodeID {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Code:     codeOrphanedConnector,
					Message:  fmt.Sprintf("listed by %q but owned by %s", n.Name, c.Owner),
					Entity:   id,
					Name:     c.Name,
				})
			}
			issues = append(issues, checkPeers(g, id, c)...)
		}
	}
	return issues
}

func checkPeers(g Graph, id entity.ID, c *graph.Connector) []Issue {
	var issues []Issue
	for _, peerID := range c.Peers {
		peer, ok := g.Connector(peerID)
		switch {
		case !ok:
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeDanglingPeer,
				Message:  fmt.Sprintf("peer %s does not exist", peerID),
				Entity:   id,
				Name:     c.Name,
			})
		case !slices.Contains(peer.Peers, id):
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeAsymmetricPeer,
				Message:  fmt.Sprintf("peer %s does not link back", peerID),
				Entity:   id,
				Name:     c.Name,
			})
		}
	}

	if !c.IsOutput() {
		if len(c.Values) > 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Code:     codeConditionValues,
				Message:  "input carries condition values",
				Entity:   id,
				Name:     c.Name,
			})
		}
		return issues
	}
	valuePeers := make([]entity.ID, len(c.Values))
	for i, v := range c.Values {
		valuePeers[i] = v.Peer
	}
	if !samePeers(c.Peers, valuePeers) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Code:     codeConditionValues,
			Message:  fmt.Sprintf("%d peers but condition values for %v", len(c.Peers), valuePeers),
			Entity:   id,
			Name:     c.Name,
		})
	}
	return issues
}

// samePeers reports whether a and b hold the same ids, each once.
func samePeers(a, b []entity.ID) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y) && len(slices.Compact(x)) == len(a)
}

// checkReachability follows links out of the Start node. A main node counts
// as reached when any of its inputs is, and its options are reached with it.
func checkReachability(g Graph) []Issue {
	var start entity.ID
	for _, id := range g.Nodes() {
		if n, ok := g.Node(id); ok && n.Kind == registry.NodeStart {
			start = id
			break
		}
	}
	if start == entity.Nil {
		return nil
	}

	reached := map[entity.ID]struct{}{start: {}}
	queue := []entity.ID{start}
	visit := func(id entity.ID) {
		if _, ok := reached[id]; !ok {
			reached[id] = struct{}{}
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		if n.Kind == registry.NodeMain {
			for _, opt := range g.Options(id) {
				visit(opt)
			}
		}
		for _, connID := range g.Connectors(id) {
			c, ok := g.Connector(connID)
			if !ok || !c.IsOutput() {
				continue
			}
			for _, peerID := range c.Peers {
				if peer, ok := g.Connector(peerID); ok && peer.Owner != entity.Nil {
					visit(peer.Owner)
				}
			}
		}
	}

	var issues []Issue
	for _, id := range g.Nodes() {
		n, ok := g.Node(id)
		if !ok || n.Kind != registry.NodeMain {
			continue
		}
		if _, ok := reached[id]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarn,
				Code:     codeUnreachableMain,
				Message:  "main node cannot be reached from the start node",
				Entity:   id,
				Name:     n.Name,
			})
		}
	}
	return issues
}
