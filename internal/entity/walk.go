package entity

// Walk visits every entity reachable from src.Root() exactly once using an
// explicit stack. Nil and unresolvable references end that branch. A visit
// error stops the walk and is returned.
func Walk(src Source, visit func(Entity) error) error {
	visited := make(map[ID]struct{})
	stack := []ID{src.Root()}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == Nil {
			continue
		}
		if _, seen := visited[id]; seen {
			continue
		}
		e, ok := src.Lookup(id)
		if !ok {
			continue
		}
		visited[id] = struct{}{}
		if err := visit(e); err != nil {
			return err
		}
		refs := e.References()
		for i := len(refs) - 1; i >= 0; i-- {
			if _, seen := visited[refs[i]]; !seen {
				stack = append(stack, refs[i])
			}
		}
	}
	return nil
}

// Reachable returns the ids reachable from src.Root() in visit order.
func Reachable(src Source) []ID {
	var ids []ID
	_ = Walk(src, func(e Entity) error {
		ids = append(ids, e.ID())
		return nil
	})
	return ids
}
