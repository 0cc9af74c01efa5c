// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package ast

import (
	"fmt"
	"strings"

	"vellum/utils"
)

// TypeId is a monotonically increasing integer assigned on type creation.
type TypeId int

const NoType TypeId = -1

type TypeKind int

const (
	KindUnit TypeKind = iota
	KindNamespace
	KindNone
	KindBool
	KindInt
	KindFloat
	KindFunction
	KindWrapper
	KindPointer
	KindArray
)

// Type is a tagged union over every type variant in §3's data model.
type Type struct {
	Id   TypeId
	Kind TypeKind

	// Int
	Signed bool
	Width  int // Int: 8/16/32/64. Float: 32/64.

	// Function
	Params  []TypeId
	Returns TypeId

	// Wrapper (e.g. const<T>), Pointer, Array
	WrapperName string
	Inner       TypeId
	Len         int // Array
}

// SizeInBytes is undefined (0) for Unit/Namespace/None, matching §3.
func (t *Type) SizeInBytes() int {
	switch t.Kind {
	case KindBool:
		return 1
	case KindInt, KindFloat:
		return t.Width / 8
	case KindFunction, KindPointer:
		return 8
	case KindWrapper:
		return 0 // caller resolves via the graph; wrapper has inner's size
	case KindArray:
		return 0 // caller resolves via the graph; len * inner's size
	default:
		return 0
	}
}

// AsmDatatype returns the §3 tag in {u32,u64,s32,s64,flt,dbl}; undefined
// (empty) for Unit/Namespace/None/Bool/aggregate kinds.
func (t *Type) AsmDatatype() string {
	switch t.Kind {
	case KindInt:
		switch {
		case t.Signed && t.Width <= 32:
			return "s32"
		case t.Signed:
			return "s64"
		case !t.Signed && t.Width <= 32:
			return "u32"
		default:
			return "u64"
		}
	case KindFloat:
		if t.Width == 32 {
			return "flt"
		}
		return "dbl"
	default:
		return ""
	}
}

func (t *Type) ReferenceAsPtr() bool {
	return t.Kind == KindArray || t.Kind == KindWrapper
}

// LabelSuffix is used for name-mangling overloaded/operator symbols.
func (t *Type) LabelSuffix() string {
	switch t.Kind {
	case KindUnit:
		return "v"
	case KindBool:
		return "b"
	case KindInt:
		sign := "u"
		if t.Signed {
			sign = "i"
		}
		return fmt.Sprintf("%s%d", sign, t.Width)
	case KindFloat:
		return fmt.Sprintf("f%d", t.Width)
	case KindFunction:
		parts := make([]string, len(t.Params))
		for i := range t.Params {
			parts[i] = fmt.Sprintf("%d", t.Params[i])
		}
		return "fn_" + strings.Join(parts, "_")
	case KindWrapper:
		return t.WrapperName + "_" + fmt.Sprintf("%d", t.Inner)
	case KindPointer:
		return "p" + fmt.Sprintf("%d", t.Inner)
	case KindArray:
		return fmt.Sprintf("a%d_%d", t.Len, t.Inner)
	default:
		return "?"
	}
}

// TypeGraph is the process-wide registry of types plus the directed
// subtype relation. It owns every type that has no other home.
type TypeGraph struct {
	types    map[TypeId]*Type
	nextId   TypeId
	subtypes map[TypeId]map[TypeId]bool // child -> direct parents
	interned map[string]TypeId          // dedup key -> id, for basic & function types

	// well-known ids, filled by Bootstrap
	Unit, None                         TypeId
	Bool                               TypeId
	I8, I16, I32, I64                  TypeId
	U8, U16, U32, U64                  TypeId
	F32, F64                           TypeId
}

func NewTypeGraph() *TypeGraph {
	g := &TypeGraph{
		types:    make(map[TypeId]*Type),
		subtypes: make(map[TypeId]map[TypeId]bool),
		interned: make(map[string]TypeId),
	}
	g.bootstrap()
	return g
}

func (g *TypeGraph) insert(t *Type) TypeId {
	t.Id = g.nextId
	g.types[t.Id] = t
	g.nextId++
	return t.Id
}

func (g *TypeGraph) Get(id TypeId) *Type {
	return g.types[id]
}

func (g *TypeGraph) internBasic(key string, build func() *Type) TypeId {
	if id, ok := g.interned[key]; ok {
		return id
	}
	id := g.insert(build())
	g.interned[key] = id
	return id
}

func (g *TypeGraph) intInstance(signed bool, width int) TypeId {
	key := fmt.Sprintf("int_%v_%d", signed, width)
	return g.internBasic(key, func() *Type { return &Type{Kind: KindInt, Signed: signed, Width: width} })
}

func (g *TypeGraph) floatInstance(width int) TypeId {
	key := fmt.Sprintf("float_%d", width)
	return g.internBasic(key, func() *Type { return &Type{Kind: KindFloat, Width: width} })
}

// AddSubtype records a direct edge child :> parent.
func (g *TypeGraph) AddSubtype(child, parent TypeId) {
	if g.subtypes[child] == nil {
		g.subtypes[child] = make(map[TypeId]bool)
	}
	g.subtypes[child][parent] = true
}

// AddSubtypeChain records child :> parent for every adjacent pair, so
// AddSubtypeChain([a,b,c]) adds a:>b and b:>c.
func (g *TypeGraph) AddSubtypeChain(ids []TypeId) {
	for i := 0; i+1 < len(ids); i++ {
		g.AddSubtype(ids[i], ids[i+1])
	}
}

func (g *TypeGraph) bootstrap() {
	g.Unit = g.internBasic("unit", func() *Type { return &Type{Kind: KindUnit} })
	g.None = g.internBasic("none", func() *Type { return &Type{Kind: KindNone} })
	g.Bool = g.internBasic("bool", func() *Type { return &Type{Kind: KindBool} })

	g.I8, g.I16, g.I32, g.I64 = g.intInstance(true, 8), g.intInstance(true, 16), g.intInstance(true, 32), g.intInstance(true, 64)
	g.U8, g.U16, g.U32, g.U64 = g.intInstance(false, 8), g.intInstance(false, 16), g.intInstance(false, 32), g.intInstance(false, 64)
	g.F32, g.F64 = g.floatInstance(32), g.floatInstance(64)

	g.AddSubtypeChain([]TypeId{g.I8, g.I16, g.I32, g.I64})
	g.AddSubtypeChain([]TypeId{g.U8, g.U16, g.U32, g.U64})

	// uintN :> intM when M > N: one edge per unsigned width into the next
	// wider signed width is enough — the signed chain above gives the rest
	// by transitivity (e.g. uint8 :> int64 via uint8 :> int16 :> ... :> int64).
	g.AddSubtype(g.U8, g.I16)
	g.AddSubtype(g.U16, g.I32)
	g.AddSubtype(g.U32, g.I64)

	g.AddSubtype(g.F32, g.F64)

	// Every integer :> float64.
	for _, id := range []TypeId{g.I8, g.I16, g.I32, g.I64, g.U8, g.U16, g.U32, g.U64} {
		g.AddSubtype(id, g.F64)
	}
	// Every integer narrower than 64 bits :> float32.
	for _, id := range []TypeId{g.I8, g.I16, g.I32, g.U8, g.U16, g.U32} {
		g.AddSubtype(id, g.F32)
	}
}

// IsSubtype answers child :> parent. Reflexive and transitive by construction:
// transitivity comes from BFS reachability over direct edges; reflexivity is
// the a==b short-circuit. Function types are handled specially — see §3:
// F :> G iff arity matches and each parameter is pairwise F.param_i :> G.param_i
// (the return type never participates).
func (g *TypeGraph) IsSubtype(child, parent TypeId) bool {
	if child == parent {
		return true
	}
	ct, pt := g.Get(child), g.Get(parent)
	if ct == nil || pt == nil {
		return false
	}
	if ct.Kind == KindFunction && pt.Kind == KindFunction {
		if len(ct.Params) != len(pt.Params) {
			return false
		}
		for i := range ct.Params {
			if !g.IsSubtype(ct.Params[i], pt.Params[i]) {
				return false
			}
		}
		return true
	}

	visited := utils.NewSet[TypeId]()
	visited.Add(child)
	queue := []TypeId{child}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for next := range g.subtypes[cur] {
			if next == parent {
				return true
			}
			if visited.Add(next) {
				queue = append(queue, next)
			}
		}
	}
	return false
}

// FunctionTypeCreate interns function types by scanning existing ones: a
// match on parameter list (and, when returns is non-nil, on return type
// too) returns the existing id; otherwise a new one is created.
func (g *TypeGraph) FunctionTypeCreate(params []TypeId, returns *TypeId) TypeId {
	for id, t := range g.types {
		if t.Kind != KindFunction || len(t.Params) != len(params) {
			continue
		}
		match := true
		for i := range params {
			if t.Params[i] != params[i] {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		if returns != nil && t.Returns != *returns {
			continue
		}
		return id
	}
	ret := g.Unit
	if returns != nil {
		ret = *returns
	}
	cp := make([]TypeId, len(params))
	copy(cp, params)
	return g.insert(&Type{Kind: KindFunction, Params: cp, Returns: ret})
}

func (g *TypeGraph) WrapperCreate(name string, inner TypeId) TypeId {
	key := "wrap_" + name + "_" + fmt.Sprintf("%d", inner)
	return g.internBasic(key, func() *Type { return &Type{Kind: KindWrapper, WrapperName: name, Inner: inner} })
}

func (g *TypeGraph) PointerCreate(inner TypeId) TypeId {
	key := fmt.Sprintf("ptr_%d", inner)
	return g.internBasic(key, func() *Type { return &Type{Kind: KindPointer, Inner: inner} })
}

func (g *TypeGraph) ArrayCreate(inner TypeId, length int) TypeId {
	key := fmt.Sprintf("arr_%d_%d", inner, length)
	return g.internBasic(key, func() *Type { return &Type{Kind: KindArray, Inner: inner, Len: length} })
}

func (g *TypeGraph) String(id TypeId) string {
	t := g.Get(id)
	if t == nil {
		return "<unknown type>"
	}
	switch t.Kind {
	case KindUnit:
		return "()"
	case KindNamespace:
		return "namespace"
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindInt:
		sign := "u"
		if t.Signed {
			sign = "i"
		}
		return fmt.Sprintf("%s%d", sign, t.Width)
	case KindFloat:
		return fmt.Sprintf("f%d", t.Width)
	case KindFunction:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = g.String(p)
		}
		return fmt.Sprintf("func(%s) -> %s", strings.Join(parts, ", "), g.String(t.Returns))
	case KindWrapper:
		return fmt.Sprintf("%s<%s>", t.WrapperName, g.String(t.Inner))
	case KindPointer:
		return fmt.Sprintf("*%s", g.String(t.Inner))
	case KindArray:
		return fmt.Sprintf("[%d]%s", t.Len, g.String(t.Inner))
	default:
		utils.Unimplement()
		return "?"
	}
}

// Candidates is the Either<Ambiguous, Unique>-shaped result of overload
// resolution (ported from original_source's either.hpp): either a single
// winning index, or the full set of indices tied for the best score.
type Candidates struct {
	Unique bool
	Index  int
	Ties   []int
}

// FilterCandidates implements §4.3's call-site overload resolution: score
// each option by the count of positions where the actual type equals the
// option's parameter type exactly; drop any option with mismatched arity or
// where some actual isn't a subtype of the option's parameter. A perfect
// score short-circuits to the unique exact match; otherwise keep only the
// options tied for the best score.
func FilterCandidates(graph *TypeGraph, actual []TypeId, options []TypeId) Candidates {
	type scored struct {
		idx, score int
	}
	var survivors []scored
	for i, optId := range options {
		opt := graph.Get(optId)
		if opt == nil || opt.Kind != KindFunction || len(opt.Params) != len(actual) {
			continue
		}
		admissible := true
		score := 0
		for p := range actual {
			if !graph.IsSubtype(actual[p], opt.Params[p]) {
				admissible = false
				break
			}
			if actual[p] == opt.Params[p] {
				score++
			}
		}
		if admissible {
			survivors = append(survivors, scored{i, score})
		}
	}
	if len(survivors) == 0 {
		return Candidates{Unique: false}
	}
	exact := len(actual)
	if utils.ContainsBy(survivors, func(s scored) bool { return s.score == exact }) {
		winner := utils.Filter(survivors, func(s scored) bool { return s.score == exact })
		return Candidates{Unique: true, Index: winner[0].idx}
	}
	best := utils.MaxBy(survivors, func(s scored) int { return s.score })
	ties := utils.Map(
		utils.Filter(survivors, func(s scored) bool { return s.score == best.score }),
		func(s scored) int { return s.idx },
	)
	if len(ties) == 1 {
		return Candidates{Unique: true, Index: ties[0]}
	}
	return Candidates{Unique: false, Ties: ties}
}
