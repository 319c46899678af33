// Package hlo implements the backend computation representation that traced
// graphs are lowered into.
//
// A Builder accumulates Ops. Every Op carries its operands, an inferred
// Shape, and the attributes of its OpCode. Builder.Build finalizes the
// accumulated ops into an immutable Computation with numbered parameters and
// a single root.
//
// Example usage:
//
//	b := hlo.NewBuilder("axpy")
//	x, _ := b.Parameter(0, hlo.MakeShape(tensor.Float32, 4), "x")
//	y, _ := b.Parameter(1, hlo.MakeShape(tensor.Float32, 4), "y")
//	sum, _ := b.Add(x, y)
//	comp, err := b.BuildWithRoot(sum)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(comp)
package hlo
