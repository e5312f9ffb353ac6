package ir

import (
	"fmt"

	"github.com/mna/lovm/lang/code"
)

// FuncDecl is one named function awaiting lowering: its parameter names
// (which become its argc and its first locals) and its body.
type FuncDecl struct {
	Name   string
	Params []string
	Body   []*Operation
}

// UnitBuilder groups named function declarations into a code.Unit.
type UnitBuilder struct {
	funcs []FuncDecl
}

// NewUnitBuilder returns an empty UnitBuilder.
func NewUnitBuilder() *UnitBuilder {
	return &UnitBuilder{}
}

// Func registers a function declaration, returning the builder for
// chaining.
func (ub *UnitBuilder) Func(name string, params []string, body []*Operation) *UnitBuilder {
	ub.funcs = append(ub.funcs, FuncDecl{Name: name, Params: params, Body: body})
	return ub
}

// Build lowers every registered function and assembles them into a Unit.
func (ub *UnitBuilder) Build() (*code.Unit, error) {
	u := code.NewUnit()
	for _, f := range ub.funcs {
		fb := NewFunctionBuilder(len(f.Params), f.Params)
		co, err := fb.Build(f.Body)
		if err != nil {
			return nil, fmt.Errorf("ir: function %s: %w", f.Name, err)
		}
		u.Set(f.Name, co)
	}
	return u, nil
}
