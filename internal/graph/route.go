package graph

import (
	"dialoguecraft/internal/entity"
)

// Route picks the peer an output leads to for value v: the first peer whose
// condition value matches under the output's condition. An output on the
// None condition always leads to its first peer. ok is false when nothing
// matches.
func (c *Cache) Route(outputID entity.ID, v Value) (entity.ID, bool, error) {
	conn, ok := c.connector(outputID)
	if !ok {
		return entity.Nil, false, missing("connector", outputID)
	}
	if !conn.IsOutput() {
		return entity.Nil, false, invalid("connector %s is not an output", outputID)
	}
	if len(conn.Values) == 0 {
		return entity.Nil, false, nil
	}
	typ := ValueNone
	if cond, ok := c.condition(conn.Condition); ok {
		typ = cond.Type
	}
	if typ == ValueNone {
		return conn.Values[0].Peer, true, nil
	}
	for _, cv := range conn.Values {
		if matches(typ, cv, v) {
			return cv.Peer, true, nil
		}
	}
	return entity.Nil, false, nil
}

func matches(typ ValueType, cv ConditionValue, v Value) bool {
	switch typ {
	case ValueBool:
		return v.Bool == cv.Param.Bool
	case ValueFloat:
		return compare(cv.Equality, v.Float, cv.Param.Float)
	case ValueInt:
		return compare(cv.Equality, v.Int, cv.Param.Int)
	}
	return false
}

func compare[T int64 | float64](eq Equality, got, want T) bool {
	switch eq {
	case GreaterThan:
		return got > want
	case LessThan:
		return got < want
	}
	return got == want
}
