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

import "testing"

func TestTypeGraphReflexiveAndTransitive(t *testing.T) {
	g := NewTypeGraph()
	if !g.IsSubtype(g.I32, g.I32) {
		t.Error("IsSubtype must be reflexive")
	}
	if !g.IsSubtype(g.I8, g.I64) {
		t.Error("i8 :> i64 should hold transitively through i8 :> i16 :> i32 :> i64")
	}
	if g.IsSubtype(g.I64, g.I8) {
		t.Error("i64 :> i8 must not hold, the chain is one-directional")
	}
}

func TestTypeGraphUnsignedIntoSigned(t *testing.T) {
	g := NewTypeGraph()
	if !g.IsSubtype(g.U8, g.I64) {
		t.Error("u8 :> i64 should hold via u8 :> i16 :> ... :> i64")
	}
	if g.IsSubtype(g.I8, g.U64) {
		t.Error("a signed type must never be a subtype of an unsigned one")
	}
}

func TestTypeGraphIntoFloat(t *testing.T) {
	g := NewTypeGraph()
	if !g.IsSubtype(g.I32, g.F64) {
		t.Error("every integer type should subtype f64")
	}
	if !g.IsSubtype(g.I32, g.F32) {
		t.Error("i32 (narrower than 64 bits) should subtype f32")
	}
	if g.IsSubtype(g.I64, g.F32) {
		t.Error("i64 is not narrower than 64 bits, must not subtype f32")
	}
}

// Function subtyping is covariant on parameters (not the usual contravariant
// rule), per §3.
func TestFunctionTypeSubtypingIsParameterCovariant(t *testing.T) {
	g := NewTypeGraph()
	retUnit := g.Unit
	narrow := g.FunctionTypeCreate([]TypeId{g.I32}, &retUnit)
	wide := g.FunctionTypeCreate([]TypeId{g.I64}, &retUnit)
	if !g.IsSubtype(narrow, wide) {
		t.Error("func(i32) should subtype func(i64): i32 :> i64 holds, and parameters are covariant here, not contravariant")
	}
	if g.IsSubtype(wide, narrow) {
		t.Error("func(i64) must not subtype func(i32)")
	}
}

func TestFunctionTypeCreateInterns(t *testing.T) {
	g := NewTypeGraph()
	ret := g.I32
	a := g.FunctionTypeCreate([]TypeId{g.I32, g.I32}, &ret)
	b := g.FunctionTypeCreate([]TypeId{g.I32, g.I32}, &ret)
	if a != b {
		t.Errorf("identical function signatures should intern to the same TypeId, got %d and %d", a, b)
	}
}

func TestFilterCandidatesExactMatchIsUnique(t *testing.T) {
	g := NewTypeGraph()
	ret := g.I32
	optA := g.FunctionTypeCreate([]TypeId{g.I32}, &ret)
	optB := g.FunctionTypeCreate([]TypeId{g.F32}, &ret)
	cands := FilterCandidates(g, []TypeId{g.I32}, []TypeId{optA, optB})
	if !cands.Unique || cands.Index != 0 {
		t.Errorf("got %+v, want a unique match on index 0", cands)
	}
}

func TestFilterCandidatesTieIsAmbiguous(t *testing.T) {
	g := NewTypeGraph()
	ret := g.Unit
	optA := g.FunctionTypeCreate([]TypeId{g.I64}, &ret)
	optB := g.FunctionTypeCreate([]TypeId{g.F64}, &ret)
	cands := FilterCandidates(g, []TypeId{g.I32}, []TypeId{optA, optB})
	if cands.Unique {
		t.Errorf("i32 subtypes both i64 and f64 with no exact match, expected a tie, got %+v", cands)
	}
	if len(cands.Ties) != 2 {
		t.Errorf("expected both options tied, got %v", cands.Ties)
	}
}

func TestFilterCandidatesArityMismatchExcluded(t *testing.T) {
	g := NewTypeGraph()
	ret := g.Unit
	opt := g.FunctionTypeCreate([]TypeId{g.I32, g.I32}, &ret)
	cands := FilterCandidates(g, []TypeId{g.I32}, []TypeId{opt})
	if cands.Unique || len(cands.Ties) != 0 {
		t.Errorf("arity mismatch must never survive candidate filtering, got %+v", cands)
	}
}
