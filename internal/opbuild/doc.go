// Package opbuild builds the backend representation of individual traced
// operators.
//
// Every Build function takes the node being lowered (for its attributes and
// constant arguments) plus the already-lowered operand ops, and returns the
// ops that compute the node's outputs. Functions are pure with respect to
// translation state: they only add ops to the operands' builder.
//
// Named arguments are read with jit.Node.Arg, so an argument may be supplied
// either as an attribute or as a prim::Constant operand at its schema
// position.
package opbuild
