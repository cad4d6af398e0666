// Package geom has the canvas geometry used by node and connector layout.
// Y grows downward; a Rect's position is its top-left corner.
package geom

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func NewRect(pos, size Vec2) Rect {
	return Rect{X: pos.X, Y: pos.Y, W: size.X, H: size.Y}
}

func (r Rect) XMin() float64 { return r.X }
func (r Rect) XMax() float64 { return r.X + r.W }
func (r Rect) YMin() float64 { return r.Y }
func (r Rect) YMax() float64 { return r.Y + r.H }

func (r Rect) Position() Vec2 { return Vec2{X: r.X, Y: r.Y} }
func (r Rect) Size() Vec2     { return Vec2{X: r.W, Y: r.H} }
func (r Rect) Center() Vec2   { return Vec2{X: r.X + r.W/2, Y: r.Y + r.H/2} }

// Contains reports whether p lies inside r, min edges inclusive.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.XMin() && p.X < r.XMax() && p.Y >= r.YMin() && p.Y < r.YMax()
}

func (r Rect) Translate(d Vec2) Rect {
	r.X += d.X
	r.Y += d.Y
	return r
}

func (r Rect) MoveTo(p Vec2) Rect {
	r.X = p.X
	r.Y = p.Y
	return r
}
