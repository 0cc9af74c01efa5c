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

func TestLintRecursesIntoNestedNamespaces(t *testing.T) {
	prog, ctx, ok := compileUp(t, `
		namespace outer {
			func f() {
				let unused: i32 = 1;
			}
		}
	`)
	if !ok {
		t.Fatalf("expected the program to type-check, got %+v", ctx.Sink.Messages)
	}
	LintProgram(prog, ctx.Sink)
	found := false
	for _, m := range ctx.Sink.Messages {
		if m.Level == LevelWarning {
			found = true
		}
	}
	if !found {
		t.Error("expected a lint warning for the unused local inside a nested namespace's function")
	}
}

func TestLintDoesNotWarnOnUnusedConstantOrUsedLocal(t *testing.T) {
	prog, ctx, ok := compileUp(t, `
		func f() -> i32 {
			const limit: i32 = 10;
			let x: i32 = 1;
			return x;
		}
	`)
	if !ok {
		t.Fatalf("expected the program to type-check, got %+v", ctx.Sink.Messages)
	}
	LintProgram(prog, ctx.Sink)
	for _, m := range ctx.Sink.Messages {
		if m.Level == LevelWarning {
			t.Errorf("unexpected lint warning: %+v", m)
		}
	}
}

func TestLintWarnsOnUnusedParameter(t *testing.T) {
	prog, ctx, ok := compileUp(t, `
		func f(a: i32, b: i32) -> i32 {
			return a;
		}
	`)
	if !ok {
		t.Fatalf("expected the program to type-check, got %+v", ctx.Sink.Messages)
	}
	LintProgram(prog, ctx.Sink)
	found := false
	for _, m := range ctx.Sink.Messages {
		if m.Level == LevelWarning {
			found = true
		}
	}
	if !found {
		t.Error("expected a lint warning for the unused parameter 'b'")
	}
}
