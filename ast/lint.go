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

// CheckLocalScope ports original_source's lint::check_local_scope: it walks
// every symbol a registry owns and warns on an ordinary or argument variable
// that is never read after its declaration. Constants and functions are
// exempt — an unused constant is common (named magic numbers kept for
// documentation) and an unused function may be part of a library's public
// surface.
func CheckLocalScope(r *Registry, sink *Sink) {
	for _, id := range r.Iterate() {
		sym := r.Symbol(id)
		if sym.Kind != SymVariable {
			continue
		}
		if sym.Category != CategoryOrdinary && sym.Category != CategoryArgument {
			continue
		}
		if sym.RefCount == 0 {
			kind := "variable"
			if sym.Category == CategoryArgument {
				kind = "parameter"
			}
			sink.Warning(sym.Token.Loc, "unused %s %s", kind, sym.Token.Image)
		}
	}
}

// LintProgram walks every registry reachable from the program's root,
// recursing into namespaces and function parameter/local scopes.
func LintProgram(n Node, sink *Sink) {
	switch node := n.(type) {
	case *Program:
		CheckLocalScope(node.Registry, sink)
		for _, d := range node.Decls {
			LintProgram(d, sink)
		}
	case *NamespaceDecl:
		CheckLocalScope(node.Registry, sink)
		for _, d := range node.Body {
			LintProgram(d, sink)
		}
	case *FuncDecl:
		if node.Registry != nil {
			CheckLocalScope(node.Registry, sink)
		}
	}
}
